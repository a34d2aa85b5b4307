package config

import (
	"fmt"
	"net/url"
	"strings"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "api-url").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set validates and applies a value in memory; the caller saves.
	Set func(cfg *Config, value string) error
}

func stringKey(name, desc string, field func(cfg *Config) *string, validate func(string) error) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Get:         func(cfg *Config) string { return *field(cfg) },
		Set: func(cfg *Config, v string) error {
			v = strings.TrimSpace(v)
			if v != "" && validate != nil {
				if err := validate(v); err != nil {
					return err
				}
			}
			*field(cfg) = v
			return nil
		},
	}
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and append a KeySpec here.
var Keys = []KeySpec{
	stringKey("api-url", "Base URL of the payment provider API",
		func(c *Config) *string { return &c.APIURL }, validateURL),
	stringKey("payment-method", "Payment method code of orders handled by payq (default creditpay)",
		func(c *Config) *string { return &c.PaymentMethod }, nil),
	stringKey("notify-to", "Comma-separated operator emails alerted about broken actions",
		func(c *Config) *string { return &c.NotifyTo }, nil),
	stringKey("notify-from", "Sender address of alert emails",
		func(c *Config) *string { return &c.NotifyFrom }, nil),
	stringKey("smtp-addr", "SMTP server host[:port] for alert emails",
		func(c *Config) *string { return &c.SMTPAddr }, nil),
	stringKey("smtp-user", "SMTP username (password via 'payq auth login smtp')",
		func(c *Config) *string { return &c.SMTPUser }, nil),
	stringKey("sweep-interval", "Time between background sweeps in serve mode (default 5m)",
		func(c *Config) *string { return &c.SweepInterval },
		func(v string) error { _, err := parsePositiveDuration("sweep-interval", v); return err }),
	stringKey("batch-size", "Orders fetched per sweep page (default 50)",
		func(c *Config) *string { return &c.BatchSize },
		func(v string) error { _, err := parsePositiveInt("batch-size", v); return err }),
	stringKey("listen-addr", "Address of the serve HTTP endpoint (default 127.0.0.1:8080)",
		func(c *Config) *string { return &c.ListenAddr }, nil),
	stringKey("retry-jitter", "Maximum random delay added to the retry interval (default 0)",
		func(c *Config) *string { return &c.RetryJitter },
		func(v string) error { _, err := parseDuration("retry-jitter", v); return err }),
	stringKey("db-path", "Path of the SQLite database",
		func(c *Config) *string { return &c.DBPath }, nil),
}

func validateURL(v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api-url: %q is not an http(s) URL", v)
	}
	return nil
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
