package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"isuride/internal/general/config"
	"isuride/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateway_PostPayment(t *testing.T) {
	type seen struct {
		auth string
		body postPaymentRequest
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		var s seen
		s.auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&s.body))
		got <- s
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL+"/", time.Second)
	accepted, err := gw.PostPayment(context.Background(), "tok", 1500)
	require.NoError(t, err)
	assert.True(t, accepted)
	s := <-got
	assert.Equal(t, "Bearer tok", s.auth)
	assert.Equal(t, 1500, s.body.Amount)
}

func TestHTTPGateway_NonSuccessIsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	accepted, err := NewHTTPGateway(srv.URL, time.Second).PostPayment(context.Background(), "tok", 100)
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestHTTPGateway_ListPayments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"amount":500,"status":"ok"},{"amount":2000,"status":"ok"}]`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, time.Second)
	payments, err := gw.ListPayments(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []ports.Payment{{Amount: 500, Status: "ok"}, {Amount: 2000, Status: "ok"}}, payments)

	_, err = gw.ListPayments(context.Background(), "other")
	assert.Error(t, err)
}

func TestHTTPGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPGateway(url, time.Second).PostPayment(context.Background(), "tok", 100)
	assert.Error(t, err)
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Payment.Provider = "http"
	cfg.Payment.GatewayURL = "http://gateway"
	gw, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &HTTPGateway{}, gw)

	cfg.Payment.Provider = "stripe"
	_, err = New(cfg)
	assert.Error(t, err, "stripe without a key")

	cfg.Payment.StripeKey = "sk_test_x"
	gw, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &StripeGateway{}, gw)

	cfg.Payment.Provider = "paypal"
	_, err = New(cfg)
	assert.Error(t, err)
}
