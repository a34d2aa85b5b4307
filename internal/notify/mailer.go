package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
)

// ErrNoRecipients is returned by NewMailer when To is empty.
var ErrNoRecipients = errors.New("notify: no recipients configured")

// DefaultTimeout bounds one delivery when the caller's context has no
// deadline.
const DefaultTimeout = 30 * time.Second

// sendFunc is smtp.SendMail with a context.
type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailerConfig configures SMTP delivery.
type MailerConfig struct {
	Addr     string
	From     string
	To       []string
	Username string
	Password string
	Timeout  time.Duration
}

// Mailer sends alert emails over SMTP.
type Mailer struct {
	cfg  MailerConfig
	send sendFunc
	now  func() time.Time
}

// NewMailer validates cfg and returns a Mailer.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if len(cfg.To) == 0 {
		return nil, ErrNoRecipients
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("notify: smtp address is required")
	}
	if cfg.From == "" {
		cfg.From = "payq@localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Mailer{cfg: cfg, send: sendMail, now: time.Now}, nil
}

// Notify emails every recipient about the broken action. The whole SMTP
// exchange is bounded by ctx and by the configured timeout.
func (m *Mailer) Notify(ctx context.Context, orderRef string, record actionqueue.ActionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	var auth smtp.Auth
	if m.cfg.Username != "" {
		host, _, err := net.SplitHostPort(m.cfg.Addr)
		if err != nil {
			host = m.cfg.Addr
		}
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}

	msg := m.message(orderRef, record)
	if err := m.send(ctx, m.cfg.Addr, auth, m.cfg.From, m.cfg.To, msg); err != nil {
		return fmt.Errorf("notify: failed to send alert for order %s: %w", orderRef, err)
	}
	return nil
}

// sendMail follows smtp.SendMail, but dials with ctx and expires the
// connection as soon as ctx is done, so a silent server cannot block it.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return withContext(ctx, err)
	}
	defer c.Close()

	if err := exchange(c, host, a, from, to, msg); err != nil {
		return withContext(ctx, err)
	}
	return nil
}

func exchange(c *smtp.Client, host string, a smtp.Auth, from string, to []string, msg []byte) error {
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// withContext attributes an I/O error to ctx when ctx ended first.
func withContext(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func (m *Mailer) message(orderRef string, record actionqueue.ActionRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", oneLine(m.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", oneLine(strings.Join(m.cfg.To, ", ")))
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(orderRef, record))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(Body(orderRef, record), "\n", "\r\n"))
	return []byte(b.String())
}

var _ actionqueue.Notifier = (*Mailer)(nil)
