// Package api exposes the three skills as JSON endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// TrendIngester is implemented by trends.Fetcher
type TrendIngester interface {
	FetchTrends(ctx context.Context, req models.TrendIngestRequest) (*models.TrendIngestResponse, error)
}

// MediaGenerator is implemented by media.Generator
type MediaGenerator interface {
	Run(ctx context.Context, req models.MediaGenerationRequest) (*models.MediaGenerationResponse, error)
}

// IntentExecutor is implemented by publish.Executor
type IntentExecutor interface {
	Run(ctx context.Context, req models.ExecutionIntentRequest) (*models.ExecutionIntentResponse, error)
}

// SnapshotTrigger is implemented by scheduler.Service
type SnapshotTrigger interface {
	RunOnce(ctx context.Context) error
}

// Handlers are the collaborators the router dispatches to. Metrics may be nil.
type Handlers struct {
	Trends  TrendIngester
	Media   MediaGenerator
	Publish IntentExecutor
	Trigger SnapshotTrigger
	Metrics http.Handler
}

type errorBody struct {
	Error *models.ErrorObject `json:"error"`
}

// NewRouter wires every endpoint onto a gorilla/mux router.
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods("GET")
	}
	router.HandleFunc("/trigger", triggerHandler(h.Trigger)).Methods("POST")

	skills := router.PathPrefix("/v1/skills").Subrouter()
	skills.HandleFunc("/ingest-trend-feeds", ingestHandler(h.Trends)).Methods("POST")
	skills.HandleFunc("/generate-media-asset", mediaHandler(h.Media)).Methods("POST")
	skills.HandleFunc("/execute-publish-intent", publishHandler(h.Publish)).Methods("POST")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func triggerHandler(trigger SnapshotTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trigger == nil {
			writeError(w, errors.New("snapshot capture is not configured"))
			return
		}

		go func() {
			if err := trigger.RunOnce(context.Background()); err != nil {
				logrus.Errorf("Manual snapshot trigger failed: %v", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Snapshot triggered successfully"})
	}
}

func ingestHandler(trends TrendIngester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.TrendIngestRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		resp, err := trends.FetchTrends(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func mediaHandler(media MediaGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.MediaGenerationRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		resp, err := media.Run(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// publishHandler answers 200 for failed intents too: the failure is part of
// the response body.
func publishHandler(publish IntentExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ExecutionIntentRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		resp, err := publish.Run(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.Validationf("body", "is not a valid request: %v", err)
	}
	return nil
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch models.ErrorKind(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindUnsupportedType, models.KindBudgetExceeded:
		return http.StatusUnprocessableEntity
	case models.KindLatencyExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logrus.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, errorBody{Error: models.ErrorObjectFrom(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"kind":%q,"message":"encoding failed"}}`, models.KindInternal), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
