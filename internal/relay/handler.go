package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/livehostne/player/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"

	maxRegisterBody = 64 << 10
)

// Handler exposes relay HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the relay endpoints on r. registerMiddleware wraps only
// POST /register (rate limiting).
func (h *Handler) Routes(r chi.Router, registerMiddleware ...func(http.Handler) http.Handler) {
	r.With(registerMiddleware...).Post("/register", h.Register)
	r.Get("/stream/{id}", h.Stream)
	r.Get("/variant/{mainId}/{variantId}", h.Variant)
	r.Get("/segment/{mainId}/{segmentId}", h.Segment)
}

type registerRequest struct {
	URL string `json:"url"`
}

type registerResponse struct {
	ID Token `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register handles POST /register.
// Body: { "url": "https://origin.example/live/index.m3u8" }; response: { "id": "<token>" }.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBody)).Decode(&req); err != nil {
		h.log.Debug("invalid register body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.svc.Register(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			h.log.Debug("register rejected", slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is missing or invalid"})
			return
		}
		h.log.Error("register failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to register url"})
		return
	}

	h.log.Debug("url registered", slog.String("id", string(token)))
	if h.metrics != nil {
		h.metrics.IncRegistrations()
	}
	writeJSON(w, http.StatusOK, registerResponse{ID: token})
}

// Stream handles GET /stream/{id}.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id := Token(chi.URLParam(r, "id"))

	m3u8, err := h.svc.Stream(r.Context(), id)
	if err != nil {
		h.fail(w, "stream", err, slog.String("id", string(id)))
		return
	}
	writePlaylist(w, m3u8)
}

// Variant handles GET /variant/{mainId}/{variantId}.
func (h *Handler) Variant(w http.ResponseWriter, r *http.Request) {
	root := Token(chi.URLParam(r, "mainId"))
	variant := Token(chi.URLParam(r, "variantId"))

	m3u8, err := h.svc.Variant(r.Context(), root, variant)
	if err != nil {
		h.fail(w, "variant", err,
			slog.String("main_id", string(root)),
			slog.String("variant_id", string(variant)))
		return
	}
	writePlaylist(w, m3u8)
}

// Segment handles GET /segment/{mainId}/{segmentId}.
func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	root := Token(chi.URLParam(r, "mainId"))
	segment := Token(chi.URLParam(r, "segmentId"))

	b, err := h.svc.Segment(r.Context(), segment)
	if err != nil {
		h.fail(w, "segment", err,
			slog.String("main_id", string(root)),
			slog.String("segment_id", string(segment)))
		return
	}

	w.Header().Set("Content-Type", segmentContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// fail maps err to a status code and a generic body. Origin URLs and upstream
// detail go to the log only.
func (h *Handler) fail(w http.ResponseWriter, what string, err error, attrs ...any) {
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrNotFound):
		h.log.Info(what+" not found", attrs...)
		http.Error(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, ErrExpired):
		h.log.Info(what+" expired", attrs...)
		http.Error(w, what+" expired", http.StatusGone)
	case errors.As(err, &upstream):
		h.log.Error(what+" origin fetch failed", append(attrs,
			slog.String("url", upstream.URL),
			slog.Int("status", upstream.Status),
			slog.String("error", err.Error()))...)
		http.Error(w, "failed to process "+what, http.StatusInternalServerError)
	default:
		h.log.Error(what+" processing failed", append(attrs, slog.String("error", err.Error()))...)
		http.Error(w, "failed to process "+what, http.StatusInternalServerError)
	}
}

func writePlaylist(w http.ResponseWriter, m3u8 string) {
	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m3u8))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
