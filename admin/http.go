package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/cachelayer/metrics"
)

const requestTimeout = 10 * time.Second

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// EntriesHandler serves GET (list all entries) and DELETE (clear).
func EntriesHandler(s *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestContext(r)
		defer cancel()

		switch r.Method {
		case http.MethodGet:
			entries, err := s.ListEntries(ctx)
			if err != nil {
				writeError(w, err)
				return
			}
			if entries == nil {
				entries = []EntryView{}
			}
			writeJSON(w, http.StatusOK, entries)

		case http.MethodDelete:
			if err := s.Clear(ctx); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, DELETE")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// EntryHandler serves GET, PUT, and DELETE for a single entry. The key is
// the "key" query parameter.
func EntryHandler(s *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestContext(r)
		defer cancel()

		key := r.URL.Query().Get("key")
		if key == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing key parameter"})
			return
		}

		switch r.Method {
		case http.MethodGet:
			entry, err := s.GetEntry(ctx, key)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, entry)

		case http.MethodPut:
			var req PutRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			if err := s.PutEntry(ctx, key, req); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case http.MethodDelete:
			if err := s.DeleteEntry(ctx, key); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, PUT, DELETE")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// metricsToggle is the JSON body for enabling or disabling a metrics domain.
type metricsToggle struct {
	Enabled bool `json:"enabled"`
}

// MetricsHandler serves GET (aggregate readout), POST (toggle), and DELETE
// (clear metrics). A nil readout, meaning the domain is disabled, is served
// as JSON null so callers can distinguish "off" from "zero traffic".
func MetricsHandler(s *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.Snapshot())

		case http.MethodPost:
			var req metricsToggle
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			s.SetMetricsEnabled(req.Enabled)
			w.WriteHeader(http.StatusNoContent)

		case http.MethodDelete:
			s.ClearMetrics()
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, POST, DELETE")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// KeyMetricsHandler serves GET (per-key readouts) and POST (toggle).
func KeyMetricsHandler(s *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, s.KeySnapshots())

		case http.MethodPost:
			var req metricsToggle
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			s.SetKeyMetricsEnabled(req.Enabled)
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// HistoryHandler serves GET over persisted rollups. Query parameters:
// period (hourly|daily|monthly), from and to (RFC 3339), key (optional).
func HistoryHandler(s *Surface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		q := r.URL.Query()

		period := metrics.Period(q.Get("period"))
		switch period {
		case metrics.PeriodHourly, metrics.PeriodDaily, metrics.PeriodMonthly, "":
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown period"})
			return
		}

		var from, to time.Time
		var err error
		if raw := q.Get("from"); raw != "" {
			from, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid from timestamp"})
				return
			}
		}
		if raw := q.Get("to"); raw != "" {
			to, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid to timestamp"})
				return
			}
		}

		records, err := s.QueryHistory(ctx, period, from, to, q.Get("key"))
		if err != nil {
			writeError(w, err)
			return
		}
		if records == nil {
			records = []*metrics.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// RegisterHandlers registers all admin handlers on the given mux under the
// /cache prefix.
func RegisterHandlers(mux *http.ServeMux, s *Surface) {
	mux.HandleFunc("/cache/entries", EntriesHandler(s))
	mux.HandleFunc("/cache/entry", EntryHandler(s))
	mux.HandleFunc("/cache/metrics", MetricsHandler(s))
	mux.HandleFunc("/cache/metrics/keys", KeyMetricsHandler(s))
	mux.HandleFunc("/cache/metrics/history", HistoryHandler(s))
}
