package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/example/metabolic-ninja/api-go/internal/dispatch"
	"github.com/example/metabolic-ninja/api-go/internal/model"
	"github.com/example/metabolic-ninja/api-go/internal/store"
)

// Jobs is the part of the dispatcher the API serves.
type Jobs interface {
	Predict(ctx context.Context, key model.JobKey) (dispatch.Outcome, error)
	Pathways(ctx context.Context, key model.JobKey) ([]model.PathwayResult, error)
	Status(ctx context.Context, key model.JobKey) (dispatch.Status, error)
}

type Server struct {
	Jobs        Jobs
	References  store.References
	Logger      logr.Logger
	CORSOrigins []string
	Metrics     http.Handler // optional, served on /metrics
}

func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests(s.Logger))
	r.Use(cors(s.CORSOrigins))

	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/pathways", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		r.Get("/predict", s.handlePredict)
		r.Get("/pathways", s.handlePathways)
		r.Get("/ws", s.handleWS)
		r.Route("/lists", func(r chi.Router) {
			r.Get("/model", s.handleList(model.KindModel))
			r.Get("/universal_model", s.handleList(model.KindUniversalModel))
			r.Get("/carbon_source", s.handleList(model.KindCarbonSource))
			r.Get("/product", s.handleList(model.KindProduct))
		})
	})

	return r
}

func cors(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowedOrigin(origins, r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func allowedOrigin(origins []string, origin string) string {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(origins, origin) {
		return origin
	}
	return ""
}

func logRequests(logger logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("Request served",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"requestId", middleware.GetReqID(r.Context()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

var keyParams = []string{"model_id", "universal_model_id", "carbon_source_id", "product_id"}

func jobKeyFromQuery(r *http.Request) (model.JobKey, error) {
	q := r.URL.Query()
	var missing []string
	for _, p := range keyParams {
		if strings.TrimSpace(q.Get(p)) == "" {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return model.JobKey{}, fmt.Errorf("missing query parameters: %s", strings.Join(missing, ", "))
	}
	return model.JobKey{
		ModelID:          strings.TrimSpace(q.Get("model_id")),
		UniversalModelID: strings.TrimSpace(q.Get("universal_model_id")),
		CarbonSourceID:   strings.TrimSpace(q.Get("carbon_source_id")),
		ProductID:        strings.TrimSpace(q.Get("product_id")),
	}, nil
}

var outcomeMessages = map[dispatch.Outcome]string{
	dispatch.OutcomeAccepted:   "Accepted",
	dispatch.OutcomeInProgress: "Already in progress (or not yet timed out)",
	dispatch.OutcomeRestarting: "Prediction failed, restarting",
	dispatch.OutcomeReady:      "Ready",
}

func (s Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	key, err := jobKeyFromQuery(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	outcome, err := s.Jobs.Predict(r.Context(), key)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidKey) {
			writeErr(w, http.StatusNotFound, errors.New("No such key"))
			return
		}
		s.Logger.Error(err, "Predict failed", "productId", key.ProductID)
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	code := http.StatusAccepted
	if outcome == dispatch.OutcomeReady {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{"status": outcome, "message": outcomeMessages[outcome]})
}

func (s Server) handlePathways(w http.ResponseWriter, r *http.Request) {
	key, err := jobKeyFromQuery(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	pathways, err := s.Jobs.Pathways(r.Context(), key)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pathways)
}

type listItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s Server) handleList(kind model.ReferenceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ""
		if kind == model.KindProduct {
			filter = strings.TrimSpace(r.URL.Query().Get("universal_model_id"))
		}
		items, err := s.References.ListReferences(r.Context(), kind, filter)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		resp := make([]listItem, 0, len(items))
		for _, item := range items {
			resp = append(resp, listItem{ID: item.ID, Name: item.Name})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
