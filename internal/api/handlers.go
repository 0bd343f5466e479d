package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davidahmann/geogate/internal/auth"
	"github.com/davidahmann/geogate/internal/intake"
	"github.com/davidahmann/geogate/internal/review"
	"github.com/davidahmann/geogate/pkg/types"
)

type Handler struct {
	Auth    auth.Authenticator
	Service *ReviewService
	Logger  *zap.Logger
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Router wires the public routes. Everything under /v1 requires a bearer token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger()))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "geogate"})
	})
	if h.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(h.Auth))
		r.Post("/decide", h.Decide)
		r.Get("/decisions/{decision_id}", h.GetDecision)
		r.Get("/decisions/{decision_id}/summary", h.Summary)
		r.Get("/decisions/{decision_id}/grade", h.Grade)
		r.Get("/sessions/{session_id}/decisions", h.SessionDecisions)
		r.Get("/verify/{receipt_id}", h.Verify)
		r.Get("/hitl/tasks", h.Tasks)
		r.Post("/reviews", h.SubmitReview)
		r.Get("/reviews/by-feature/{feature_id}", h.ReviewsByFeature)
	})
	return r
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	req, err := intake.Decode(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := h.Service.Decide(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if resp.Replayed {
		w.Header().Set("Idempotent-Replay", "true")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	env, err := h.Service.GetDecision(chi.URLParam(r, "decision_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	env, err := h.Service.Summary(chi.URLParam(r, "decision_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *Handler) Grade(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Grade(chi.URLParam(r, "decision_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SessionDecisions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	list, err := h.Service.ListSessionDecisions(sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "decisions": list})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Verify(chi.URLParam(r, "receipt_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	tasks, err := h.Service.ListTasks(r.URL.Query().Get("status"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(io.LimitReader(r.Body, intake.MaxBodyBytes))
	dec.DisallowUnknownFields()
	var req ReviewRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return
	}

	resp, err := h.Service.SubmitReview(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ReviewsByFeature(w http.ResponseWriter, r *http.Request) {
	featureID := chi.URLParam(r, "feature_id")
	reviews, err := h.Service.ListReviews(featureID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feature_id": featureID, "reviews": reviews})
}

func actorFrom(r *http.Request) types.ReceiptActor {
	claims, _ := auth.ClaimsFrom(r.Context())
	return types.ReceiptActor{Kind: "service", Subject: claims.Subject, Issuer: claims.Issuer}
}

func statusFor(err error) int {
	var verr *types.ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTaskSettled):
		return http.StatusConflict
	case errors.As(err, &verr),
		errors.Is(err, intake.ErrMissingFindings),
		errors.Is(err, review.ErrUnknownQuestion),
		errors.Is(err, ErrInvalidReview),
		errors.Is(err, ErrNoResolutions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
