package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/metrics"
)

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(chimw.RequestID, AccessLog(zap.New(core)))
	r.Get("/invoices/{id}", func(w http.ResponseWriter, req *http.Request) {
		logger.FromContext(req.Context()).Info("handler")
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/invoices/{id}", "418")
	before := testutil.ToFloat64(counter)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/42", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "handler", entries[0].Message)
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"], "handler logger carries the request id")

	fields := entries[1].ContextMap()
	assert.Equal(t, "/invoices/{id}", fields["route"])
	assert.Equal(t, "/invoices/42", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
}

func TestAccessLog_DefaultStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.Equal(t, "unmatched", fields["route"])
}
