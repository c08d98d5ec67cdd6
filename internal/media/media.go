// Package media uploads local files to the Graph API and resolves the
// returned media ids into fetchable URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/response"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/transport"
)

// Kind is the broad media category of an upload.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindSticker  Kind = "sticker"
)

var (
	// ErrMissingMediaID is returned when the upload answer carries no id.
	ErrMissingMediaID = errors.New("media: upload response has no media id")
	// ErrMissingMediaURL is returned when the lookup answer carries no url.
	ErrMissingMediaURL = errors.New("media: lookup response has no url")
)

// UploadError reports a failed upload of a local file.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("media: upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ResolutionError reports a failed lookup of an uploaded media id.
type ResolutionError struct {
	MediaID string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("media: resolve %s: %v", e.MediaID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// LocalFile is a file on disk that has not been uploaded yet.
type LocalFile struct {
	Path     string
	FileName string
	Kind     Kind
}

// Uploaded is a file the provider has accepted and assigned an id.
type Uploaded struct {
	ID       string
	FileName string
}

// Resolved is an uploaded file with a time-limited download URL.
type Resolved struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Transport is the subset of the transport client the orchestrator needs.
type Transport interface {
	Send(ctx context.Context, env transport.Envelope) (*transport.RawOutcome, error)
	Download(ctx context.Context, rawURL string, w io.Writer) (*transport.RawOutcome, int64, error)
}

// Option customises the orchestrator.
type Option func(*Orchestrator)

// WithOpener replaces the function used to open local files.
func WithOpener(open func(path string) (io.ReadCloser, error)) Option {
	return func(o *Orchestrator) {
		if open != nil {
			o.open = open
		}
	}
}

// Orchestrator runs the upload and lookup calls for one client.
type Orchestrator struct {
	logger    zerolog.Logger
	transport Transport
	baseURL   string
	apiRoot   string
	open      func(path string) (io.ReadCloser, error)
}

// NewOrchestrator builds an orchestrator. baseURL is the sender-scoped
// endpoint used for uploads; apiRoot is the versioned root used for lookups.
func NewOrchestrator(t Transport, baseURL, apiRoot string, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if t == nil {
		return nil, errors.New("media: transport dependency is required")
	}
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(apiRoot) == "" {
		return nil, errors.New("media: base url and api root are required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	o := &Orchestrator{
		logger:    logger,
		transport: t,
		baseURL:   baseURL,
		apiRoot:   apiRoot,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path) // #nosec G304 -- caller supplied upload path
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Upload sends the file as multipart form data and returns the media id.
// The file is open only for the duration of the call.
func (o *Orchestrator) Upload(ctx context.Context, file LocalFile) (*Uploaded, error) {
	if strings.TrimSpace(file.Path) == "" {
		return nil, &UploadError{Path: file.Path, Err: errors.New("file path is required")}
	}

	fh, err := o.open(file.Path)
	if err != nil {
		return nil, &UploadError{Path: file.Path, Err: err}
	}
	defer fh.Close()

	name := file.FileName
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(file.Path)
	}

	outcome, err := o.transport.Send(ctx, transport.Envelope{
		BaseURL: o.baseURL,
		Path:    "/media",
		Method:  http.MethodPost,
		Form: &transport.Form{
			Fields: []transport.Field{
				{Name: "messaging_product", Value: transport.MessagingProduct},
				{Name: "type", Value: contentType(file)},
			},
			File: &transport.FormFile{Field: "file", FileName: name, Reader: fh},
		},
	})
	if err != nil {
		return nil, &UploadError{Path: file.Path, Err: err}
	}

	result, err := response.Normalize(outcome)
	if err != nil {
		return nil, &UploadError{Path: file.Path, Err: err}
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := result.Decode(&body); err != nil {
		return nil, &UploadError{Path: file.Path, Err: err}
	}
	if strings.TrimSpace(body.ID) == "" {
		return nil, &UploadError{Path: file.Path, Err: ErrMissingMediaID}
	}

	o.logger.Debug().
		Str("media_id", body.ID).
		Str("file_name", name).
		Msg("media uploaded")
	return &Uploaded{ID: body.ID, FileName: name}, nil
}

// Resolve looks up an uploaded media id and returns its download URL.
func (o *Orchestrator) Resolve(ctx context.Context, mediaID string) (*Resolved, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return nil, &ResolutionError{Err: errors.New("media id is required")}
	}

	outcome, err := o.transport.Send(ctx, transport.Envelope{
		BaseURL: o.apiRoot,
		Path:    "/" + mediaID,
		Method:  http.MethodGet,
	})
	if err != nil {
		return nil, &ResolutionError{MediaID: mediaID, Err: err}
	}

	result, err := response.Normalize(outcome)
	if err != nil {
		return nil, &ResolutionError{MediaID: mediaID, Err: err}
	}

	var resolved Resolved
	if err := result.Decode(&resolved); err != nil {
		return nil, &ResolutionError{MediaID: mediaID, Err: err}
	}
	if strings.TrimSpace(resolved.URL) == "" {
		return nil, &ResolutionError{MediaID: mediaID, Err: ErrMissingMediaURL}
	}
	if resolved.ID == "" {
		resolved.ID = mediaID
	}
	return &resolved, nil
}

// UploadAndResolve runs both steps in order. Resolution starts only after the
// upload returned an id.
func (o *Orchestrator) UploadAndResolve(ctx context.Context, file LocalFile) (*Resolved, error) {
	uploaded, err := o.Upload(ctx, file)
	if err != nil {
		return nil, err
	}
	return o.Resolve(ctx, uploaded.ID)
}

// Download streams a resolved media URL into w and returns the bytes written.
func (o *Orchestrator) Download(ctx context.Context, mediaURL string, w io.Writer) (int64, error) {
	outcome, n, err := o.transport.Download(ctx, mediaURL, w)
	if err != nil {
		return 0, fmt.Errorf("media: download: %w", err)
	}
	if outcome.Failed() {
		_, failure := response.Normalize(outcome)
		return n, fmt.Errorf("media: download: %w", failure)
	}
	return n, nil
}

// contentType picks the MIME type sent in the upload's "type" field.
func contentType(file LocalFile) string {
	if ext := filepath.Ext(file.Path); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			if i := strings.IndexByte(t, ';'); i >= 0 {
				t = t[:i]
			}
			return strings.TrimSpace(t)
		}
	}
	if file.Kind != "" {
		return string(file.Kind)
	}
	return "application/octet-stream"
}
