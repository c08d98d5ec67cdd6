// Package fake serves a deterministic in-process Graph API for tests and
// dry runs.
package fake

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Scenario enumerates supported behaviours for the fake API.
type Scenario string

const (
	ScenarioSuccess   Scenario = "success"
	ScenarioTransient Scenario = "transient"
	ScenarioPermanent Scenario = "permanent"
	ScenarioTimeout   Scenario = "timeout"
	ScenarioMalformed Scenario = "malformed"
)

// ScenarioHeader selects the scenario for a single request.
const ScenarioHeader = "X-Fake-Scenario"

// Request is a call recorded by the server.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded body into v.
func (r Request) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Option customises the server at construction time.
type Option func(*Server)

// WithScenario overrides the default scenario.
func WithScenario(s Scenario) Option {
	return func(srv *Server) {
		srv.scenario = s
	}
}

// WithLatency sets the artificial latency inserted before responding.
func WithLatency(d time.Duration) Option {
	return func(srv *Server) {
		if d < 0 {
			d = 0
		}
		srv.latency = d
	}
}

// WithMediaContent sets the bytes served for downloaded media.
func WithMediaContent(b []byte) Option {
	return func(srv *Server) {
		srv.content = append([]byte(nil), b...)
	}
}

// Server is an httptest-backed Graph API.
type Server struct {
	logger   zerolog.Logger
	scenario Scenario
	latency  time.Duration
	content  []byte

	httpSrv *httptest.Server

	mu       sync.Mutex
	seq      int
	requests []Request
}

// NewServer starts a fake Graph API. Close it when done.
func NewServer(logger zerolog.Logger, opts ...Option) *Server {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	s := &Server{
		logger:   logger,
		scenario: ScenarioSuccess,
		content:  []byte("fake-media-content"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/download/{mediaID}", s.handleDownload)
	r.Post("/{version}/{phoneID}/messages", s.handleMessages)
	r.Post("/{version}/{phoneID}/media", s.handleUpload)
	r.Post("/{version}/{phoneID}/message_qrdls", s.handleQRCode)
	r.Get("/{version}/{mediaID}", s.handleLookup)

	s.httpSrv = httptest.NewServer(r)
	return s
}

// URL is the server root, suitable for config.CloudConfig.APIBaseURL.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Client returns an HTTP client wired to the server.
func (s *Server) Client() *http.Client {
	return s.httpSrv.Client()
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// SetScenario changes the default scenario for later requests.
func (s *Server) SetScenario(sc Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario = sc
}

// Requests returns a copy of every request served so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Paths returns "METHOD path" for every request served so far.
func (s *Server) Paths() []string {
	reqs := s.Requests()
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, 190, "OAuthException", "Invalid OAuth access token.")
			return
		}
		if !s.wait(r) {
			return
		}
		if s.respondScenario(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (s *Server) wait(r *http.Request) bool {
	if s.latency <= 0 {
		return true
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-r.Context().Done():
		return false
	case <-timer.C:
		return true
	}
}

// respondScenario writes a failure for non-success scenarios and reports
// whether it did.
func (s *Server) respondScenario(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	scenario := s.scenario
	s.mu.Unlock()
	if v := strings.TrimSpace(r.Header.Get(ScenarioHeader)); v != "" {
		scenario = Scenario(strings.ToLower(v))
	}

	switch scenario {
	case ScenarioSuccess, "":
		return false
	case ScenarioTransient:
		writeError(w, http.StatusTooManyRequests, 130429, "OAuthException", "(#130429) Rate limit hit")
	case ScenarioPermanent:
		writeError(w, http.StatusBadRequest, 131030, "OAuthException", "(#131030) Recipient phone number not in allowed list")
	case ScenarioTimeout:
		<-r.Context().Done()
	case ScenarioMalformed:
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html><body>502 Bad Gateway</body></html>")
	default:
		writeError(w, http.StatusBadRequest, 100, "OAuthException", fmt.Sprintf("unknown fake scenario %q", scenario))
	}
	s.logger.Debug().Str("scenario", string(scenario)).Str("path", r.URL.Path).Msg("fake graph api: scenario response")
	return true
}

func (s *Server) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To        string `json:"to"`
		Status    string `json:"status"`
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, 100, "OAuthException", "invalid json body")
		return
	}

	if body.Status == "read" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	if strings.TrimSpace(body.To) == "" {
		writeError(w, http.StatusBadRequest, 100, "OAuthException", "(#100) The parameter to is required.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messaging_product": "whatsapp",
		"contacts":          []map[string]string{{"input": body.To, "wa_id": body.To}},
		"messages":          []map[string]string{{"id": s.next("wamid.fake.")}},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, 100, "OAuthException", "invalid multipart body")
		return
	}
	if r.FormValue("messaging_product") != "whatsapp" {
		writeError(w, http.StatusBadRequest, 100, "OAuthException", "(#100) The parameter messaging_product is required.")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, 100, "OAuthException", "(#100) The parameter file is required.")
		return
	}
	_ = f.Close()
	writeJSON(w, http.StatusOK, map[string]string{"id": s.next("media-")})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mediaID")
	writeJSON(w, http.StatusOK, map[string]any{
		"messaging_product": "whatsapp",
		"id":                id,
		"url":               s.URL() + "/download/" + id,
		"mime_type":         "image/jpeg",
		"sha256":            "fake-sha256",
		"file_size":         len(s.content),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(s.content)
}

func (s *Server) handleQRCode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := s.next("QR")
	format := q.Get("generate_qr_image")
	writeJSON(w, http.StatusOK, map[string]string{
		"code":              code,
		"prefilled_message": q.Get("prefilled_message"),
		"deep_link_url":     "https://wa.me/message/" + code,
		"qr_image_url":      s.URL() + "/qr/" + code + "." + format,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, typ, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message":    msg,
			"type":       typ,
			"code":       code,
			"fbtrace_id": "fake-trace",
		},
	})
}
