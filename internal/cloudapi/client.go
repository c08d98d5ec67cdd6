// Package cloudapi is the WhatsApp Cloud API client. Each operation validates
// its input, builds the request body, dispatches it and normalizes the answer.
package cloudapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/config"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/inbound"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/media"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/response"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/transport"
)

var (
	// ErrMissingAccessToken is returned by NewClient without an access token.
	ErrMissingAccessToken = errors.New(`cloudapi: missing "accessToken"`)
	// ErrMissingSenderPhoneNumberID is returned by NewClient without a sender id.
	ErrMissingSenderPhoneNumberID = errors.New(`cloudapi: missing "senderPhoneNumberId"`)
	// ErrNotImplemented is returned by operations the client does not support yet.
	ErrNotImplemented = errors.New("cloudapi: operation not implemented")
)

// Option customises the client.
type Option func(*options)

type options struct {
	httpClient transport.HTTPClient
	bodyLimit  int64
	headers    http.Header
	opener     func(string) (io.ReadCloser, error)
}

// WithHTTPClient sets the HTTP client used for every Graph API call.
func WithHTTPClient(client transport.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithBodyLimit caps how many response bytes are kept per call.
func WithBodyLimit(limit int64) Option {
	return func(o *options) {
		o.bodyLimit = limit
	}
}

// WithHeaders adds headers to every message call. They override the defaults.
func WithHeaders(h http.Header) Option {
	return func(o *options) {
		o.headers = h.Clone()
	}
}

// WithFileOpener replaces how local media files are opened for upload.
func WithFileOpener(open func(string) (io.ReadCloser, error)) Option {
	return func(o *options) {
		o.opener = open
	}
}

// MediaResult is the answer to a media message: the normalized provider
// result plus the body that was sent.
type MediaResult struct {
	Result *response.Result
	Body   *message.Payload
}

// Client talks to the Graph API on behalf of one sender phone number. It is
// safe for concurrent use.
type Client struct {
	logger    zerolog.Logger
	cfg       config.CloudConfig
	transport *transport.Client
	media     *media.Orchestrator
	headers   http.Header
}

// NewClient validates cfg and builds a client.
func NewClient(cfg config.CloudConfig, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingAccessToken
	}
	if strings.TrimSpace(cfg.SenderPhoneNumberID) == "" {
		return nil, ErrMissingSenderPhoneNumberID
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if cfg.VersionOverridden() {
		logger.Warn().
			Str("graph_api_version", cfg.Version()).
			Str("default_version", config.DefaultGraphAPIVersion).
			Msg("cloudapi: non-default Graph API version in use, behaviour may differ")
	}

	tr := transport.New(cfg.AccessToken, logger,
		transport.WithHTTPClient(o.httpClient),
		transport.WithBodyLimit(o.bodyLimit),
	)

	orch, err := media.NewOrchestrator(tr, cfg.BaseURL(), cfg.APIRoot(), logger, media.WithOpener(o.opener))
	if err != nil {
		return nil, fmt.Errorf("cloudapi: media orchestrator: %w", err)
	}

	return &Client{
		logger:    logger,
		cfg:       cfg,
		transport: tr,
		media:     orch,
		headers:   o.headers,
	}, nil
}

// Config returns the client's configuration.
func (c *Client) Config() config.CloudConfig {
	return c.cfg
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, m message.Text) (*response.Result, error) {
	body, err := message.BuildText(m)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, body)
}

// SendButtons sends an interactive reply button message.
func (c *Client) SendButtons(ctx context.Context, m message.Buttons) (*response.Result, error) {
	body, err := message.BuildButtons(m)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, body)
}

// SendList sends an interactive list message.
func (c *Client) SendList(ctx context.Context, m message.List) (*response.Result, error) {
	body, err := message.BuildList(m)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, body)
}

// SendImage sends an image, uploading and resolving a local file first. On a
// provider failure the returned MediaResult still carries the body.
func (c *Client) SendImage(ctx context.Context, m message.Image) (*MediaResult, error) {
	body, err := message.BuildImage(ctx, m, c.media)
	if err != nil {
		return nil, err
	}
	res, err := c.dispatch(ctx, body)
	return &MediaResult{Result: res, Body: body}, err
}

// SendDocument sends a document, uploading a local file first. On a provider
// failure the returned MediaResult still carries the body.
func (c *Client) SendDocument(ctx context.Context, m message.Document) (*MediaResult, error) {
	body, err := message.BuildDocument(ctx, m, c.media)
	if err != nil {
		return nil, err
	}
	res, err := c.dispatch(ctx, body)
	return &MediaResult{Result: res, Body: body}, err
}

// SendLocation sends a location card.
func (c *Client) SendLocation(ctx context.Context, m message.Location) (*response.Result, error) {
	body, err := message.BuildLocation(m)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, body)
}

// SendContact sends the sample contact card to m.To.
func (c *Client) SendContact(ctx context.Context, m message.Contact) (*response.Result, error) {
	body, err := message.BuildContact(m)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, body)
}

// MarkAsRead marks an inbound message as read. Provider and transport
// failures are logged and swallowed; only validation errors are returned.
func (c *Client) MarkAsRead(ctx context.Context, m message.ReadReceipt) (*response.Result, error) {
	body, err := message.BuildReadReceipt(m)
	if err != nil {
		return nil, err
	}
	if _, err := c.dispatch(ctx, body); err != nil {
		c.logger.Debug().
			Str("message_id", m.MessageID).
			Err(err).
			Msg("cloudapi: mark as read failed, ignoring")
	}
	return response.Success(nil), nil
}

// CreateQRCode creates a QR code that opens a chat with a prefilled message.
func (c *Client) CreateQRCode(ctx context.Context, m message.QRCode) (*response.Result, error) {
	query, err := message.QRCodeQuery(m)
	if err != nil {
		return nil, err
	}
	outcome, err := c.transport.Send(ctx, transport.Envelope{
		BaseURL: c.cfg.BaseURL(),
		Path:    "/message_qrdls?" + query.Encode(),
		Method:  http.MethodPost,
		Headers: c.headers,
		Body:    map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("cloudapi: create qr code: %w", err)
	}
	return response.Normalize(outcome)
}

// UploadMedia uploads a local file and returns its media id.
func (c *Client) UploadMedia(ctx context.Context, file media.LocalFile) (*media.Uploaded, error) {
	return c.media.Upload(ctx, file)
}

// RetrieveMedia resolves a media id into its download URL and metadata.
func (c *Client) RetrieveMedia(ctx context.Context, mediaID string) (*media.Resolved, error) {
	return c.media.Resolve(ctx, mediaID)
}

// DownloadMedia streams a resolved media URL into w.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string, w io.Writer) (int64, error) {
	return c.media.Download(ctx, mediaURL, w)
}

// ParseMessage decodes a webhook notification, keeping only entries for the
// configured business account when one is set.
func (c *Client) ParseMessage(payload []byte) (*inbound.Notification, error) {
	return inbound.Parse(payload, c.cfg.BusinessAccountID)
}

// Send dispatches any supported request by kind.
func (c *Client) Send(ctx context.Context, req message.Request) (*response.Result, error) {
	switch m := req.(type) {
	case message.Text:
		return c.SendText(ctx, m)
	case message.Buttons:
		return c.SendButtons(ctx, m)
	case message.List:
		return c.SendList(ctx, m)
	case message.Image:
		res, err := c.SendImage(ctx, m)
		return mediaResult(res), err
	case message.Document:
		res, err := c.SendDocument(ctx, m)
		return mediaResult(res), err
	case message.Location:
		return c.SendLocation(ctx, m)
	case message.Contact:
		return c.SendContact(ctx, m)
	case message.ReadReceipt:
		return c.MarkAsRead(ctx, m)
	case message.QRCode:
		return c.CreateQRCode(ctx, m)
	case nil:
		return nil, errors.New("cloudapi: request is nil")
	default:
		return nil, fmt.Errorf("cloudapi: unsupported request kind %q", req.Kind())
	}
}

func mediaResult(res *MediaResult) *response.Result {
	if res == nil {
		return nil
	}
	return res.Result
}

func (c *Client) dispatch(ctx context.Context, body *message.Payload) (*response.Result, error) {
	outcome, err := c.transport.Send(ctx, transport.Envelope{
		BaseURL: c.cfg.BaseURL(),
		Path:    "/messages",
		Method:  http.MethodPost,
		Headers: c.headers,
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudapi: send %s: %w", body.Type, err)
	}

	res, err := response.Normalize(outcome)
	if err != nil {
		c.logger.Debug().
			Str("type", body.Type).
			Int("status_code", outcome.StatusCode).
			Err(err).
			Msg("cloudapi: provider rejected message")
		return nil, err
	}
	return res, nil
}
