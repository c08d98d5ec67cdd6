package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/transport"
)

type capturedRequest struct {
	method  string
	path    string
	query   string
	headers http.Header
	body    []byte
}

func newCaptureServer(t *testing.T, status int, respBody string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.headers = r.Header.Clone()
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestMergeHeadersCallerWins(t *testing.T) {
	defaults := transport.DefaultHeaders("token")
	overrides := http.Header{}
	overrides.Set("accept-language", "pt_BR")
	overrides.Set("X-Trace", "abc")

	merged := transport.MergeHeaders(defaults, overrides)

	if got := merged.Get("Accept-Language"); got != "pt_BR" {
		t.Fatalf("expected caller override pt_BR, got %s", got)
	}
	if got := merged.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("expected default authorization, got %s", got)
	}
	if got := merged.Get("X-Trace"); got != "abc" {
		t.Fatalf("expected caller header, got %s", got)
	}
	if got := defaults.Get("Accept-Language"); got != "en_US" {
		t.Fatalf("defaults must not be mutated, got %s", got)
	}

	merged.Set("Accept", "text/plain")
	if defaults.Get("Accept") != "application/json" {
		t.Fatalf("merged header must not alias defaults")
	}
}

func TestDefaultHeadersWithoutToken(t *testing.T) {
	h := transport.DefaultHeaders("")
	if h.Get("Authorization") != "" {
		t.Fatalf("expected no authorization header without token")
	}
	if h.Get("Content-Type") != "application/json" || h.Get("Accept") != "application/json" {
		t.Fatalf("unexpected default headers %v", h)
	}
}

func TestSendJSONBody(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, `{"messages":[{"id":"wamid.1"}]}`)
	client := transport.New("secret", zerolog.Nop())

	outcome, err := client.Send(context.Background(), transport.Envelope{
		BaseURL: srv.URL + "/v13.0/123/",
		Path:    "/messages",
		Method:  "post",
		Headers: http.Header{"X-Custom": []string{"1"}},
		Body:    map[string]string{"to": "1555"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Failed() {
		t.Fatalf("expected success outcome, got %+v", outcome)
	}
	if captured.method != http.MethodPost || captured.path != "/v13.0/123/messages" {
		t.Fatalf("unexpected request %s %s", captured.method, captured.path)
	}
	if got := captured.headers.Get("Authorization"); got != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %s", got)
	}
	if got := captured.headers.Get("Accept-Language"); got != "en_US" {
		t.Fatalf("expected en_US accept-language, got %s", got)
	}
	if got := captured.headers.Get("X-Custom"); got != "1" {
		t.Fatalf("expected custom header, got %s", got)
	}

	var body map[string]string
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("expected json body: %v", err)
	}
	if body["to"] != "1555" {
		t.Fatalf("unexpected body %v", body)
	}
	if !strings.Contains(string(outcome.Body), "wamid.1") {
		t.Fatalf("expected response body to be retained, got %s", outcome.Body)
	}
}

func TestSendDefaultsMethodAndBody(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, `{}`)
	client := transport.New("secret", zerolog.Nop())

	if _, err := client.Send(context.Background(), transport.Envelope{BaseURL: srv.URL, Path: "/lookup"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.method != http.MethodGet {
		t.Fatalf("expected GET default, got %s", captured.method)
	}
	if len(captured.body) != 0 {
		t.Fatalf("expected no body for GET, got %q", captured.body)
	}

	if _, err := client.Send(context.Background(), transport.Envelope{BaseURL: srv.URL, Path: "/qr", Method: http.MethodPost}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(captured.body) != "{}" {
		t.Fatalf("expected {} body default for POST, got %q", captured.body)
	}
}

func TestSendProviderErrorIsReturnedNotRaised(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusBadRequest, `{"error":{"message":"bad"}}`)
	client := transport.New("secret", zerolog.Nop())

	outcome, err := client.Send(context.Background(), transport.Envelope{BaseURL: srv.URL, Path: "/messages", Method: http.MethodPost, Body: map[string]any{}})
	if err != nil {
		t.Fatalf("provider failures must not be returned as errors: %v", err)
	}
	if !outcome.Failed() || outcome.Err == nil {
		t.Fatalf("expected failed outcome, got %+v", outcome)
	}
	if outcome.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", outcome.StatusCode)
	}
	if !strings.Contains(string(outcome.Body), "bad") {
		t.Fatalf("expected raw error body, got %s", outcome.Body)
	}
}

type failingDoer struct{ err error }

func (f failingDoer) Do(*http.Request) (*http.Response, error) { return nil, f.err }

func TestSendNetworkFailure(t *testing.T) {
	netErr := errors.New("connection refused")
	client := transport.New("secret", zerolog.Nop(), transport.WithHTTPClient(failingDoer{err: netErr}))

	outcome, err := client.Send(context.Background(), transport.Envelope{BaseURL: "http://example.invalid", Path: "/messages", Method: http.MethodPost, Body: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(outcome.Err, netErr) {
		t.Fatalf("expected wrapped network error, got %v", outcome.Err)
	}
	if outcome.StatusCode != 0 {
		t.Fatalf("expected zero status code, got %d", outcome.StatusCode)
	}
}

func TestSendRejectsIncompleteEnvelope(t *testing.T) {
	client := transport.New("secret", zerolog.Nop(), transport.WithHTTPClient(failingDoer{err: errors.New("must not be called")}))

	if _, err := client.Send(context.Background(), transport.Envelope{BaseURL: "http://x"}); !errors.Is(err, transport.ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
	if _, err := client.Send(context.Background(), transport.Envelope{Path: "/messages"}); !errors.Is(err, transport.ErrMissingBaseURL) {
		t.Fatalf("expected ErrMissingBaseURL, got %v", err)
	}
	if _, err := client.Send(context.Background(), transport.Envelope{BaseURL: "http://x", Path: "/m", Method: http.MethodPost, Body: make(chan int)}); err == nil {
		t.Fatalf("expected encode error for unsupported body")
	}
}

func TestSendMultipartForm(t *testing.T) {
	var (
		fields   = map[string]string{}
		fileName string
		fileData []byte
		ctype    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err == nil {
			fileName = hdr.Filename
			fileData, _ = io.ReadAll(f)
			f.Close()
		}
		_, _ = io.WriteString(w, `{"id":"123"}`)
	}))
	t.Cleanup(srv.Close)

	client := transport.New("secret", zerolog.Nop())
	outcome, err := client.Send(context.Background(), transport.Envelope{
		BaseURL: srv.URL,
		Path:    "/media",
		Method:  http.MethodPost,
		Form: &transport.Form{
			Fields: []transport.Field{{Name: "messaging_product", Value: transport.MessagingProduct}, {Name: "type", Value: "image/png"}},
			File:   &transport.FormFile{Field: "file", FileName: "cat.png", Reader: bytes.NewReader([]byte("png-bytes"))},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Failed() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if !strings.HasPrefix(ctype, "multipart/form-data; boundary=") {
		t.Fatalf("expected multipart content type, got %s", ctype)
	}
	if fields["messaging_product"] != "whatsapp" || fields["type"] != "image/png" {
		t.Fatalf("unexpected form fields %v", fields)
	}
	if fileName != "cat.png" || string(fileData) != "png-bytes" {
		t.Fatalf("unexpected file part %s %q", fileName, fileData)
	}
}

func TestDownload(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"message":"gone"}}`)
			return
		}
		_, _ = io.WriteString(w, "binary-content")
	}))
	t.Cleanup(srv.Close)

	client := transport.New("secret", zerolog.Nop())

	var buf bytes.Buffer
	outcome, n, err := client.Download(context.Background(), srv.URL+"/media.bin", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Failed() || n != int64(len("binary-content")) || buf.String() != "binary-content" {
		t.Fatalf("unexpected download result %+v n=%d body=%q", outcome, n, buf.String())
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer auth on download, got %s", auth)
	}

	buf.Reset()
	outcome, n, err = client.Download(context.Background(), srv.URL+"/missing", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Failed() || n != 0 || buf.Len() != 0 {
		t.Fatalf("expected failed download without writes, got %+v n=%d", outcome, n)
	}
	if !strings.Contains(string(outcome.Body), "gone") {
		t.Fatalf("expected error body, got %s", outcome.Body)
	}
}
