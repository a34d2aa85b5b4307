package providers

import (
	"errors"
	"fmt"
	"sync"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/remote"
	"nathanbeddoewebdev/payq/internal/services/auth"
)

// CreditPay is the payment method handled by the HTTP remote client.
const CreditPay = "creditpay"

var registerOnce sync.Once

// RegisterDefaults registers the built-in payment methods. It is safe to
// call more than once.
func RegisterDefaults() {
	registerOnce.Do(func() {
		Register(CreditPay, newCreditPay)
	})
}

func newCreditPay(settings Settings, store auth.Store) (actionqueue.RemoteEffector, error) {
	if settings.APIURL == "" {
		return nil, fmt.Errorf("providers: %s: api-url is not configured (run: payq config set api-url <url>)", CreditPay)
	}
	token, err := store.GetToken(auth.SecretProvider)
	if err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			return nil, fmt.Errorf("providers: %s: no API key stored (run: payq auth login %s)", CreditPay, auth.SecretProvider)
		}
		return nil, fmt.Errorf("providers: %s: read API key: %w", CreditPay, err)
	}
	return remote.NewClient(settings.APIURL, token), nil
}
