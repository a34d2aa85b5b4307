package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps secrets in the OS keychain under one service name.
type KeyringStore struct {
	serviceName string
}

var _ Store = (*KeyringStore)(nil)

func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

func (k *KeyringStore) SetToken(name string, token string) error {
	if err := keyring.Set(k.serviceName, NormalizeName(name), token); err != nil {
		return fmt.Errorf("auth: keychain write %s: %w", NormalizeName(name), err)
	}
	return nil
}

// GetToken returns ErrTokenNotFound when no secret is stored under name.
func (k *KeyringStore) GetToken(name string) (string, error) {
	token, err := keyring.Get(k.serviceName, NormalizeName(name))
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, keyring.ErrNotFound):
		return "", ErrTokenNotFound
	default:
		return "", fmt.Errorf("auth: keychain read %s: %w", NormalizeName(name), err)
	}
}

func (k *KeyringStore) DeleteToken(name string) error {
	err := keyring.Delete(k.serviceName, NormalizeName(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	return err
}
