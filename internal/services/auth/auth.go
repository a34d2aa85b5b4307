// Package auth stores payq's secrets in the OS keychain.
package auth

import (
	"errors"
	"fmt"
	"slices"

	"nathanbeddoewebdev/payq/internal/util"
)

const ServiceName = "payq"

// Secret names accepted by the store.
const (
	// SecretProvider is the payment provider API key.
	SecretProvider = "provider"
	// SecretSMTP is the SMTP password used for alert emails.
	SecretSMTP = "smtp"
)

// Secrets lists every known secret name.
var Secrets = []string{SecretProvider, SecretSMTP}

var (
	ErrTokenNotFound = errors.New("auth token not found")
	ErrUnknownSecret = errors.New("unknown secret")
)

type Store interface {
	SetToken(name string, token string) error
	GetToken(name string) (string, error)
	DeleteToken(name string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeName normalizes a secret name for consistent key lookup.
func NormalizeName(name string) string {
	return util.NormalizeKey(name)
}

// ValidateName reports whether name is a known secret.
func ValidateName(name string) error {
	if !slices.Contains(Secrets, NormalizeName(name)) {
		return fmt.Errorf("%w %q (valid: %v)", ErrUnknownSecret, name, Secrets)
	}
	return nil
}
