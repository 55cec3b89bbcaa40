// Package api serves the stored run history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/itohio/mlbench/pkg/scenario"
	"github.com/itohio/mlbench/pkg/store"
)

// DefaultLimit caps /runs when no limit is given.
const DefaultLimit = 100

// History is the read side of the run store.
type History interface {
	List(ctx context.Context, scenario string, limit int) ([]store.Run, error)
	Get(ctx context.Context, id int64) (store.Run, error)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRouter registers the history routes.
func NewRouter(h History) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/runs", handleList(h)).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id:[0-9]+}", handleGet(h)).Methods(http.MethodGet)
	r.HandleFunc("/scenarios", handleScenarios).Methods(http.MethodGet)
	return r
}

func handleList(h History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := DefaultLimit
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				sendErrorResponse(w, "invalid_request", "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		runs, err := h.List(r.Context(), q.Get("scenario"), limit)
		if err != nil {
			sendErrorResponse(w, "internal", err.Error(), http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []store.Run{}
		}
		sendJSON(w, runs)
	}
}

func handleGet(h History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			sendErrorResponse(w, "invalid_request", "invalid run id", http.StatusBadRequest)
			return
		}
		run, err := h.Get(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			sendErrorResponse(w, "not_found", err.Error(), http.StatusNotFound)
		case err != nil:
			sendErrorResponse(w, "internal", err.Error(), http.StatusInternalServerError)
		default:
			sendJSON(w, run)
		}
	}
}

func handleScenarios(w http.ResponseWriter, _ *http.Request) {
	out := make([]scenario.Scenario, 0, len(scenario.Names()))
	for _, name := range scenario.Names() {
		s, err := scenario.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sendJSON(w, out)
}

func sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
