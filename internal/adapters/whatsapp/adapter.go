package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	common "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/adapters/common"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/response"
)

// Sender is the part of the client facade the adapter drives.
// *cloudapi.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, req message.Request) (*response.Result, error)
}

// Option customises adapter behaviour.
type Option func(*Adapter)

// WithRawBodyLimit overrides the maximum number of characters retained from the provider body.
func WithRawBodyLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxRawChars = limit
		}
	}
}

// WithAttemptTimeout bounds a single delivery attempt. Zero disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d >= 0 {
			a.timeout = d
		}
	}
}

// Adapter implements common.Adapter on top of the Cloud API client.
type Adapter struct {
	logger      zerolog.Logger
	sender      Sender
	maxRawChars int
	timeout     time.Duration
}

// NewAdapter constructs a WhatsApp adapter.
func NewAdapter(sender Sender, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if sender == nil {
		return nil, errors.New("whatsapp adapter: sender dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:      logger,
		sender:      sender,
		maxRawChars: common.DefaultRawBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Send dispatches the validated request and classifies any failure as
// transient or permanent.
func (a *Adapter) Send(ctx context.Context, msg *common.ValidatedMessage) (*common.ProviderResponse, error) {
	if msg == nil || msg.Request == nil {
		return nil, common.WrapPermanent(errors.New("whatsapp adapter: message request is nil"))
	}

	attemptCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	res, err := a.sender.Send(attemptCtx, msg.Request)
	if err != nil {
		classified := classify(ctx, err)
		resp := a.buildErrorResponse(err, classified)
		a.logger.Warn().
			Str("message_id", msg.MessageID).
			Str("kind", string(msg.Kind)).
			Str("provider_status", resp.Status).
			Err(err).
			Msg("whatsapp adapter send failed")
		return resp, classified
	}

	resp := a.buildSuccessResponse(res)
	a.logger.Debug().
		Str("message_id", msg.MessageID).
		Str("kind", string(msg.Kind)).
		Str("provider_id", resp.Meta["provider_id"]).
		Msg("whatsapp adapter send succeeded")
	return resp, nil
}

// classify leaves cancellation of the parent context untouched so the worker
// can tell a shutdown apart from a provider failure. An attempt that ran out
// of time on its own is retried.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.WrapTransient(err)
	}
	return common.Classify(err)
}

func (a *Adapter) buildSuccessResponse(res *response.Result) *common.ProviderResponse {
	meta := make(map[string]string)
	var raw string
	if res != nil {
		if ids := res.MessageIDs(); len(ids) > 0 {
			meta["provider_id"] = ids[0]
		}
		raw = common.TruncateRaw(string(res.Data), a.maxRawChars)
	}
	if len(meta) == 0 {
		meta = nil
	}

	return &common.ProviderResponse{
		Status:  common.ResponseSent,
		Message: "sent",
		Raw:     raw,
		Meta:    meta,
	}
}

func (a *Adapter) buildErrorResponse(err, classified error) *common.ProviderResponse {
	status := common.ResponseUnknown
	switch {
	case errors.Is(classified, common.ErrTransient):
		status = common.ResponseRateLimited
	case errors.Is(classified, common.ErrPermanent):
		status = common.ResponseRejected
	}

	resp := &common.ProviderResponse{
		Status:  status,
		Message: err.Error(),
	}

	var failure *response.Failure
	if errors.As(err, &failure) {
		resp.Code = common.IntPtr(failure.Code())
		resp.Message = failure.Message()
		if body, mErr := json.Marshal(failure); mErr == nil {
			resp.Raw = common.TruncateRaw(string(body), a.maxRawChars)
		}
		meta := map[string]string{}
		if failure.StatusCode != 0 {
			meta["http_status"] = strconv.Itoa(failure.StatusCode)
		}
		for _, key := range []string{"type", "fbtrace_id"} {
			if v, ok := failure.Fields[key].(string); ok && v != "" {
				meta[key] = v
			}
		}
		if len(meta) > 0 {
			resp.Meta = meta
		}
		return resp
	}

	var verr *message.ValidationError
	if errors.As(err, &verr) {
		resp.Meta = map[string]string{"field": verr.Field}
		resp.Message = fmt.Sprintf("%s %s", verr.Field, verr.Constraint)
	}
	return resp
}
