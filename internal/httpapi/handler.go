// Package httpapi serves the Lambda contract over plain HTTP for local
// development: the browser widget can talk to it exactly as it would to the
// API Gateway stage.
package httpapi

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/example/contact-relay/internal/models"
)

const (
	contactPath  = "/contact"
	maxBodyBytes = 1 << 20
)

// EventHandler is satisfied by *dispatcher.Dispatcher.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.Event) models.Response
}

// Handler adapts HTTP requests to dispatcher events.
type Handler struct {
	events EventHandler
	logger zerolog.Logger
}

// NewHandler constructs the HTTP adapter.
func NewHandler(events EventHandler, logger zerolog.Logger) *Handler {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Handler{events: events, logger: logger}
}

// Register mounts the contact routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Get(contactPath, h.serveEvent)
		r.Post(contactPath, h.serveEvent)
		r.Get("/healthz", h.health)
	})
}

// NewRouter builds the full router. metricsHandler may be nil.
func NewRouter(h *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	h.Register(r)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, models.FailureResponse(models.ErrMsgMethodNotAllowed))
	})
	return r
}

func (h *Handler) serveEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := eventFromRequest(w, r)
	if err != nil {
		h.logger.Info().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("unreadable submission")
		// An unreadable body has no fields, which the dispatcher treats as
		// a failed verification.
		ev = models.Event{HTTPMethod: r.Method}
	}

	resp := h.events.HandleEvent(r.Context(), ev)
	writeJSON(w, statusFor(resp), resp)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// eventFromRequest accepts JSON bodies and url-encoded or multipart forms.
// A form field that is not posted stays nil; the Referer header stands in
// for a missing referer field.
func eventFromRequest(w http.ResponseWriter, r *http.Request) (models.Event, error) {
	ev := models.Event{HTTPMethod: r.Method}
	if r.Method != http.MethodPost {
		return ev, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			return models.Event{HTTPMethod: r.Method}, err
		}
		ev.HTTPMethod = r.Method
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return ev, err
		}
		fillFromForm(&ev, r)
	default:
		if err := r.ParseForm(); err != nil {
			return ev, err
		}
		fillFromForm(&ev, r)
	}

	if ev.Referer == nil {
		if ref := r.Referer(); ref != "" {
			ev.Referer = &ref
		}
	}
	return ev, nil
}

func fillFromForm(ev *models.Event, r *http.Request) {
	field := func(name string) *string {
		vals, ok := r.PostForm[name]
		if !ok || len(vals) == 0 {
			return nil
		}
		v := vals[0]
		return &v
	}
	ev.Altcha = field("altcha")
	ev.Mail = field("mail")
	ev.Text = field("text")
	ev.Subject = field("subject")
	ev.Referer = field("referer")
}

func statusFor(resp models.Response) int {
	if resp.Success == nil || *resp.Success {
		return http.StatusOK
	}
	switch resp.Error {
	case models.ErrMsgVerificationFailed:
		return http.StatusBadRequest
	case models.ErrMsgSendFailed:
		return http.StatusBadGateway
	case models.ErrMsgMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
