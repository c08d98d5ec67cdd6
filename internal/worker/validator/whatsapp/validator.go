package whatsappvalidator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	common "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/adapters/common"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/config"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/models"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/util"
)

// Validator implements worker.Validator for outbound WhatsApp requests.
type Validator struct {
	logger zerolog.Logger
	cfg    config.ValidationConfig
}

// New constructs a Validator.
func New(cfg config.ValidationConfig, logger zerolog.Logger) *Validator {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Validator{logger: logger, cfg: cfg}
}

// ParseAndValidate decodes the payload strictly, checks the envelope and
// runs the message validation for the request kind. When the payload decodes
// but fails validation, the partially filled message is returned with the
// error so the DLQ record carries the request's own id.
func (v *Validator) ParseAndValidate(ctx context.Context, channel string, payload []byte) (*common.ValidatedMessage, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errors.New("whatsapp validator: payload is empty")
	}

	var req models.OutboundRequest
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("whatsapp validator: decode: %w", err)
	}

	validated := &common.ValidatedMessage{
		Channel:    strings.ToLower(strings.TrimSpace(req.Channel)),
		Kind:       req.Kind,
		MessageID:  strings.TrimSpace(req.MessageID),
		TraceID:    strings.TrimSpace(req.TraceID),
		TenantID:   strings.TrimSpace(req.TenantID),
		RawPayload: append([]byte(nil), payload...),
	}

	if err := v.applyDefaultsAndValidate(channel, &req); err != nil {
		v.logger.Debug().Str("message_id", validated.MessageID).Err(err).Msg("whatsapp validator: rejected request")
		return validated, err
	}

	msg, err := req.Payload()
	if err != nil {
		return validated, fmt.Errorf("whatsapp validator: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return validated, fmt.Errorf("whatsapp validator: %s: %w", req.Kind, err)
	}

	validated.Channel = req.Channel
	validated.MessageID = req.MessageID
	validated.CreatedAt = req.CreatedAt
	validated.Metadata = req.Meta
	validated.Request = msg
	return validated, nil
}

func (v *Validator) applyDefaultsAndValidate(channel string, req *models.OutboundRequest) error {
	req.Channel = strings.TrimSpace(strings.ToLower(req.Channel))
	if req.Channel == "" {
		req.Channel = channel
	}
	if channel != "" && req.Channel != strings.ToLower(channel) {
		return fmt.Errorf("whatsapp validator: channel mismatch: expected %s, got %s", channel, req.Channel)
	}

	if _, err := util.ParseUUIDv4(req.MessageID); err != nil {
		return fmt.Errorf("whatsapp validator: message_id: %w", err)
	}
	req.MessageID = strings.TrimSpace(req.MessageID)
	req.TraceID = strings.TrimSpace(req.TraceID)
	req.TenantID = strings.TrimSpace(req.TenantID)

	if req.CreatedAt.IsZero() {
		return errors.New("whatsapp validator: created_at is required")
	}
	req.CreatedAt = req.CreatedAt.UTC()

	for _, to := range recipients(req) {
		if strings.TrimSpace(*to) == "" {
			continue
		}
		normalized, err := util.NormalizeRecipient(*to)
		if err != nil {
			return fmt.Errorf("whatsapp validator: to: %w", err)
		}
		*to = normalized
	}

	meta, err := util.ValidateMetadata(req.Meta, v.cfg.MetaMaxEntries, v.cfg.MetaMaxKeyLen, v.cfg.MetaMaxValueLen)
	if err != nil {
		return fmt.Errorf("whatsapp validator: metadata: %w", err)
	}
	req.Meta = meta

	return nil
}

// recipients returns the envelope recipient and the recipient of every body
// that carries one.
func recipients(req *models.OutboundRequest) []*string {
	out := []*string{&req.To}
	if req.Text != nil {
		out = append(out, &req.Text.To)
	}
	if req.Buttons != nil {
		out = append(out, &req.Buttons.To)
	}
	if req.List != nil {
		out = append(out, &req.List.To)
	}
	if req.Image != nil {
		out = append(out, &req.Image.To)
	}
	if req.Document != nil {
		out = append(out, &req.Document.To)
	}
	if req.Location != nil {
		out = append(out, &req.Location.To)
	}
	if req.Contact != nil {
		out = append(out, &req.Contact.To)
	}
	return out
}
