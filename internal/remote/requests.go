package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// Data keys understood by the request builders.
const (
	KeyTrackingNumber = "tracking_number"
	KeyCarrier        = "carrier"
	KeyAmount         = "amount"
	KeyReason         = "reason"
	KeyInvoiceNumber  = "invoice_number"
)

type confirmRequest struct {
	OrderRef string `json:"order_ref"`
}

type shipmentRequest struct {
	OrderRef       string `json:"order_ref"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier,omitempty"`
}

type invoiceRequest struct {
	OrderRef      string `json:"order_ref"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	Amount        string `json:"amount,omitempty"`
}

type cancelRequest struct {
	OrderRef string `json:"order_ref"`
	Reason   string `json:"reason,omitempty"`
}

type refundRequest struct {
	OrderRef string `json:"order_ref"`
	Amount   string `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

func buildShipment(orderRef string, data map[string]string) (shipmentRequest, error) {
	tracking := strings.TrimSpace(data[KeyTrackingNumber])
	if tracking == "" {
		return shipmentRequest{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, KeyTrackingNumber)
	}
	return shipmentRequest{
		OrderRef:       orderRef,
		TrackingNumber: tracking,
		Carrier:        strings.TrimSpace(data[KeyCarrier]),
	}, nil
}

func buildInvoice(orderRef string, data map[string]string) (invoiceRequest, error) {
	req := invoiceRequest{
		OrderRef:      orderRef,
		InvoiceNumber: strings.TrimSpace(data[KeyInvoiceNumber]),
	}
	if raw := strings.TrimSpace(data[KeyAmount]); raw != "" {
		amount, err := parseAmount(raw)
		if err != nil {
			return invoiceRequest{}, err
		}
		req.Amount = amount
	}
	return req, nil
}

func buildRefund(orderRef string, data map[string]string) (refundRequest, error) {
	raw := strings.TrimSpace(data[KeyAmount])
	if raw == "" {
		return refundRequest{}, fmt.Errorf("%w: %s is required", ErrInvalidRequest, KeyAmount)
	}
	amount, err := parseAmount(raw)
	if err != nil {
		return refundRequest{}, err
	}
	return refundRequest{
		OrderRef: orderRef,
		Amount:   amount,
		Reason:   strings.TrimSpace(data[KeyReason]),
	}, nil
}

// parseAmount validates a positive decimal amount with at most two
// fractional digits and returns it in canonical form.
func parseAmount(raw string) (string, error) {
	whole, frac, _ := strings.Cut(raw, ".")
	if len(frac) > 2 {
		return "", fmt.Errorf("%w: amount %q has more than two decimals", ErrInvalidRequest, raw)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || whole == "" {
		return "", fmt.Errorf("%w: amount %q must be a positive decimal", ErrInvalidRequest, raw)
	}
	return strconv.FormatFloat(v, 'f', 2, 64), nil
}
