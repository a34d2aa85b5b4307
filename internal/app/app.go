// Package app assembles the queue and its collaborators from resolved
// settings. Commands and the serve daemon share it so both run the same
// wiring against the same database.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/config"
	"nathanbeddoewebdev/payq/internal/notify"
	"nathanbeddoewebdev/payq/internal/orderstore"
	"nathanbeddoewebdev/payq/internal/providers"
	"nathanbeddoewebdev/payq/internal/services/auth"
)

// DefaultSweepWorkers is how many orders a sweep processes concurrently.
const DefaultSweepWorkers = 4

// ErrOffline is returned by every remote call of an offline App.
var ErrOffline = errors.New("app: payment provider is not configured for this command")

// Options controls Open.
type Options struct {
	// Secrets holds the provider API key and SMTP password.
	Secrets auth.Store
	// Logger receives queue and scheduler logs. Nil discards them.
	Logger *log.Logger
	// AlertOut receives one line per escalated action. Nil means the
	// alerts are only emailed.
	AlertOut io.Writer
	// Offline skips provider setup. Use it for commands that never call
	// the provider, so they work before auth login.
	Offline bool
}

// App is an opened queue with its stores.
type App struct {
	Settings config.Settings
	Store    *orderstore.Store
	Audit    *auditlog.SQLiteRepository
	Queue    *actionqueue.Queue
	Logger   *log.Logger
}

// Open opens the database and builds the queue for settings.
func Open(settings config.Settings, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	path, err := DBPath(settings)
	if err != nil {
		return nil, err
	}

	var effector actionqueue.RemoteEffector = offlineRemote{}
	if !opts.Offline {
		effector, err = providers.Get(settings.PaymentMethod, providers.Settings{APIURL: settings.APIURL}, opts.Secrets)
		if err != nil {
			return nil, err
		}
	}

	notifier, err := buildNotifier(settings, opts)
	if err != nil {
		return nil, err
	}

	store, err := orderstore.OpenAt(path)
	if err != nil {
		return nil, err
	}
	audit, err := auditlog.OpenAt(path)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	queueCfg := actionqueue.Config{
		PaymentMethod: settings.PaymentMethod,
		RetryJitter:   settings.RetryJitter,
	}
	queue := actionqueue.New(store, effector, notifier, queueCfg,
		actionqueue.WithLocker(store.Locker(orderstore.LeaseTTL(queueCfg))),
		actionqueue.WithAttemptRecorder(audit),
		actionqueue.WithLogger(logger),
		actionqueue.WithSweepWorkers(DefaultSweepWorkers),
	)

	return &App{
		Settings: settings,
		Store:    store,
		Audit:    audit,
		Queue:    queue,
		Logger:   logger,
	}, nil
}

// Close closes both stores.
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Audit.Close())
}

func buildNotifier(settings config.Settings, opts Options) (actionqueue.Notifier, error) {
	var notifiers notify.Multi
	if settings.SMTPAddr != "" && len(settings.NotifyTo) > 0 {
		password := ""
		if settings.SMTPUser != "" && opts.Secrets != nil {
			var err error
			password, err = opts.Secrets.GetToken(auth.SecretSMTP)
			if err != nil && !errors.Is(err, auth.ErrTokenNotFound) {
				return nil, fmt.Errorf("app: read smtp password: %w", err)
			}
		}
		mailer, err := notify.NewMailer(notify.MailerConfig{
			Addr:     settings.SMTPAddr,
			From:     settings.NotifyFrom,
			To:       settings.NotifyTo,
			Username: settings.SMTPUser,
			Password: password,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, mailer)
	}
	if opts.AlertOut != nil {
		notifiers = append(notifiers, notify.NewWriter(opts.AlertOut))
	}
	if len(notifiers) == 0 {
		notifiers = append(notifiers, notify.NewWriter(io.Discard))
	}
	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return notifiers, nil
}

type offlineRemote struct{}

var _ actionqueue.RemoteEffector = offlineRemote{}

func (offlineRemote) Confirm(context.Context, string, map[string]string) error { return ErrOffline }
func (offlineRemote) ReportShipped(context.Context, string, map[string]string) error { return ErrOffline }
func (offlineRemote) CreateInvoice(context.Context, string, map[string]string) error { return ErrOffline }
func (offlineRemote) Cancel(context.Context, string, map[string]string) error { return ErrOffline }
func (offlineRemote) Refund(context.Context, string, map[string]string) error { return ErrOffline }
func (offlineRemote) ReverseCancel(context.Context, string, map[string]string) error { return ErrOffline }
