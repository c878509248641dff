// Package paymentmock is a local stand-in for the payment gateway: it accepts
// any bearer token and records payments per token.
package paymentmock

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"isuride/internal/general/logger"
	"isuride/internal/ports"

	"github.com/gorilla/mux"
)

// maxAmount is the largest single payment the mock accepts.
const maxAmount = 1_000_000

var errBadAuthorization = errors.New("authorization header must be 'Bearer <token>'")

// Server keeps payments in memory. With a non-zero fail rate, POST /payments
// answers 500 for that share of requests; half of those failures still record
// the payment, which is the ambiguous outcome clients must reconcile.
type Server struct {
	logger   *logger.Logger
	failRate float64
	roll     func() float64

	mu       sync.Mutex
	payments map[string][]ports.Payment
}

// NewServer creates a mock gateway. failRate is clamped to 0..1.
func NewServer(logger *logger.Logger, failRate float64) *Server {
	return &Server{
		logger:   logger,
		failRate: min(max(failRate, 0), 1),
		roll:     rand.Float64,
		payments: make(map[string][]ports.Payment),
	}
}

// Router returns the gateway routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/payments", s.handlePostPayment).Methods(http.MethodPost)
	r.HandleFunc("/payments", s.handleListPayments).Methods(http.MethodGet)
	return r
}

type postPaymentRequest struct {
	Amount int `json:"amount"`
}

func (s *Server) handlePostPayment(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	var req postPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if req.Amount <= 0 || req.Amount > maxAmount {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid amount"})
		return
	}

	if s.failRate > 0 && s.roll() < s.failRate {
		recorded := s.roll() < 0.5
		if recorded {
			s.record(token, req.Amount)
		}
		s.logger.Info(r.Context(), "payment_failure_injected", "Answering 500 to payment", map[string]any{
			"amount": req.Amount, "recorded": recorded,
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "injected failure"})
		return
	}

	s.record(token, req.Amount)
	s.logger.Debug(r.Context(), "payment_recorded", "Payment recorded", map[string]any{"amount": req.Amount})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	out := append(make([]ports.Payment, 0, len(s.payments[token])), s.payments[token]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) record(token string, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[token] = append(s.payments[token], ports.Payment{Amount: amount, Status: "succeeded"})
}

func bearerToken(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", errBadAuthorization
	}
	return token, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
