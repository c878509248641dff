// Package payment holds the clients of the external payment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"isuride/internal/ports"
)

const DefaultTimeout = 5 * time.Second

// HTTPGateway speaks the gateway's REST contract: POST /payments answers 204
// on success, GET /payments always answers 200 with the token's payments.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway returns a gateway client rooted at baseURL.
func NewHTTPGateway(baseURL string, timeout time.Duration) ports.PaymentGateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type postPaymentRequest struct {
	Amount int `json:"amount"`
}

func (gateway *HTTPGateway) PostPayment(ctx context.Context, token string, amount int) (bool, error) {
	body, err := json.Marshal(postPaymentRequest{Amount: amount})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gateway.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := gateway.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("post payment: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusNoContent, nil
}

func (gateway *HTTPGateway) ListPayments(ctx context.Context, token string) ([]ports.Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway.baseURL+"/payments", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := gateway.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer resp.Body.Close()

	// GET /payments answers 200 even while POST is failing, so anything else is unrecoverable
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list payments: unexpected status code %d", resp.StatusCode)
	}

	var payments []ports.Payment
	if err := json.NewDecoder(resp.Body).Decode(&payments); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	return payments, nil
}
