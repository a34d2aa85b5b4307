package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/tui/styles"
)

// QueueRow is one pending action in a queue listing.
type QueueRow struct {
	OrderRef    string
	Status      string
	Kind        actionqueue.Kind
	State       string
	FailedCount int
	NextAttempt time.Time
}

// QueueTable renders rows as a bordered table with colored badges.
func QueueTable(rows []QueueRow, now time.Time) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.TableBorder).
		Headers("ORDER", "STATUS", "ACTION", "STATE", "FAILURES", "NEXT ATTEMPT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			return styles.TableCell
		})

	for _, r := range rows {
		t.Row(
			r.OrderRef,
			styles.StatusIndicator(r.Status),
			string(r.Kind),
			styles.Badge(r.State),
			strconv.Itoa(r.FailedCount),
			FormatNextAttempt(r.State, r.NextAttempt, now),
		)
	}
	return t.String()
}

// FormatNextAttempt describes when an action is tried next.
func FormatNextAttempt(state string, next, now time.Time) string {
	switch {
	case state == styles.StateBroken:
		return "never (operator)"
	case state == styles.StateDone:
		return "-"
	case next.IsZero() || !next.After(now):
		return "next run"
	}
	d := next.Sub(now).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("in %ds", int(d.Seconds()))
	}
	return fmt.Sprintf("in %dm", int(d.Minutes()))
}

// ActionState classifies a pending record for display.
func ActionState(record actionqueue.ActionRecord, broken bool) string {
	switch {
	case broken:
		return styles.StateBroken
	case record.FailedCount > 0:
		return styles.StateRetrying
	default:
		return styles.StatePending
	}
}
