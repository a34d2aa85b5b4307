// Package tui holds the interactive pieces of payq's CLI: confirmation
// forms, spinners and styled tables. Callers decide whether the terminal
// is interactive; everything here assumes it is.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/tui/styles"
)

// ErrAborted is returned when a user cancels an interactive flow.
var ErrAborted = errors.New("aborted by user")

func accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// runForm runs a huh.Form, translating ErrUserAborted to ErrAborted.
func runForm(groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithAccessible(accessible()).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

// ConfirmRemove asks the operator to confirm removing a broken action.
// It returns ErrAborted when the operator declines or cancels.
func ConfirmRemove(orderRef string, record actionqueue.ActionRecord, lastError string) error {
	confirm := false
	if err := runForm(huh.NewGroup(
		huh.NewNote().
			Title("Remove broken action").
			Description(removeSummary(orderRef, record, lastError)),
		huh.NewConfirm().
			Title("Remove it from the queue? The provider will not be called again.").
			Affirmative("Remove").
			Negative("Keep").
			Value(&confirm),
	)); err != nil {
		return err
	}
	if !confirm {
		return ErrAborted
	}
	return nil
}

func removeSummary(orderRef string, record actionqueue.ActionRecord, lastError string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", styles.Label.Render("Order: "), styles.Value.Render(orderRef))
	fmt.Fprintf(&b, "%s %s\n", styles.Label.Render("Action:"), styles.Value.Render(record.Kind.Label()))
	fmt.Fprintf(&b, "%s %s", styles.Label.Render("Failed:"), styles.ErrorText.Render(fmt.Sprintf("%d times", record.FailedCount)))
	if lastError != "" {
		fmt.Fprintf(&b, "\n%s %s", styles.Label.Render("Last:  "), styles.MutedText.Render(lastError))
	}
	return b.String()
}

// RunSpinner shows a spinner on out while action runs. Interrupting the
// spinner cancels the context passed to action.
func RunSpinner(out io.Writer, title string, action func(ctx context.Context) error) error {
	err := spinner.New().
		Title(title).
		Accessible(accessible()).
		Output(out).
		ActionWithErr(action).
		Run()
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
		return ErrAborted
	}
	return err
}
