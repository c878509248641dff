package dispatchservice

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithConcurrencyLimit_BoundsInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 3)
	h := withConcurrencyLimit(2, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}()
	}

	<-entered
	<-entered
	select {
	case <-entered:
		t.Fatal("third request entered while two were in flight")
	default:
	}

	close(release)
	wg.Wait()
	assert.Len(t, entered, 1)
}

func TestWithConcurrencyLimit_WebsocketBypass(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	h := withConcurrencyLimit(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hold" {
			<-block
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	go h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hold", nil))

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
