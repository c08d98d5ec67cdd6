// Package webhook receives Graph API webhook calls: the subscription
// handshake and event notifications, which are forwarded to Kafka.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/inbound"
)

const defaultMaxBodyBytes = 1 << 20

// EventPublisher forwards normalized webhook events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event inbound.Event) error
}

// Option customises the handler.
type Option func(*Handler)

// WithBusinessAccountID keeps only entries for the given account.
func WithBusinessAccountID(id string) Option {
	return func(h *Handler) {
		h.accountID = id
	}
}

// WithMaxBodyBytes caps the notification body size.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithReadiness makes /healthz report 503 while ready returns false.
func WithReadiness(ready func() bool) Option {
	return func(h *Handler) {
		h.ready = ready
	}
}

// Handler serves the webhook endpoints.
type Handler struct {
	logger      zerolog.Logger
	verifyToken string
	accountID   string
	publisher   EventPublisher
	maxBody     int64
	ready       func() bool
}

// NewHandler validates its collaborators and returns a Handler.
func NewHandler(verifyToken string, publisher EventPublisher, logger zerolog.Logger, opts ...Option) (*Handler, error) {
	if verifyToken == "" {
		return nil, errors.New("webhook: verify token is required")
	}
	if publisher == nil {
		return nil, errors.New("webhook: publisher is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	h := &Handler{
		logger:      logger,
		verifyToken: verifyToken,
		publisher:   publisher,
		maxBody:     defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes mounts the endpoints on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", h.health)
	r.Get("/webhook", h.verify)
	r.Post("/webhook", h.receive)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil && !h.ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	_, _ = io.WriteString(w, "ok")
}

// verify answers the subscription handshake by echoing hub.challenge when
// the token matches.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken {
		h.logger.Warn().Str("mode", q.Get("hub.mode")).Msg("webhook: verification rejected")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// receive publishes every event of a notification. Payloads that cannot be
// parsed are acknowledged since redelivery would not fix them; publish
// failures answer 503 so the provider retries.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	note, err := inbound.Parse(body, h.accountID)
	if err != nil {
		h.logger.Warn().Err(err).Int("bytes", len(body)).Msg("webhook: ignoring notification")
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, event := range note.Events {
		if err := h.publisher.PublishEvent(r.Context(), event); err != nil {
			h.logger.Error().
				Err(err).
				Str("type", string(event.Type)).
				Str("message_id", event.MessageID).
				Msg("webhook: publish event failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	h.logger.Debug().Int("events", len(note.Events)).Msg("webhook: notification published")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			h.logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("webhook: request")
		}()
		next.ServeHTTP(ww, r)
	})
}
