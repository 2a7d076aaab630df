// Package server wires the HTTP API over the rate service.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/petitolabs/forex-proxy/internal/logger"
	"github.com/petitolabs/forex-proxy/internal/models"
	"github.com/petitolabs/forex-proxy/internal/rates"
)

// RateService resolves ordered currency pairs to rates.
type RateService interface {
	Get(pair models.Pair) (models.Rate, error)
}

// New builds the HTTP handler: the rates endpoint plus a liveness
// probe, all wrapped by a server-wide timeout.
func New(svc RateService, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/rates", handleGetRates(svc))
	r.Get("/healthz", handleHealthz)

	return otelhttp.NewHandler(r, "forex-proxy")
}

type rateResponse struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Price     json.Number `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func handleGetRates(svc RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pair, ok := parsePair(r)
		if !ok {
			// Unknown currency and missing parameter collapse into
			// the same 404; the distinction stays server-side.
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown currency pair"})
			return
		}

		rate, err := svc.Get(pair)
		if err != nil {
			logger.Log.Warn().Err(err).
				Str("from", pair.From.String()).
				Str("to", pair.To.String()).
				Msg("rate lookup failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: rates.ErrLookupFailed.Error()})
			return
		}

		writeJSON(w, http.StatusOK, rateResponse{
			From:      rate.Pair.From.String(),
			To:        rate.Pair.To.String(),
			Price:     json.Number(rate.Price.String()),
			Timestamp: rate.Timestamp,
		})
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parsePair(r *http.Request) (models.Pair, bool) {
	from, err := models.ParseCurrency(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("from"))))
	if err != nil {
		return models.Pair{}, false
	}
	to, err := models.ParseCurrency(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("to"))))
	if err != nil {
		return models.Pair{}, false
	}
	return models.Pair{From: from, To: to}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error().Err(err).Msg("failed to write response")
	}
}
