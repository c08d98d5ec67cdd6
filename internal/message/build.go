package message

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/media"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/transport"
)

// ErrNoResolver is returned when a local file must be uploaded but no
// resolver was supplied.
var ErrNoResolver = errors.New("message: media resolver is required for local files")

// MediaResolver uploads local files and resolves media ids. It is satisfied
// by *media.Orchestrator.
type MediaResolver interface {
	Upload(ctx context.Context, file media.LocalFile) (*media.Uploaded, error)
	Resolve(ctx context.Context, mediaID string) (*media.Resolved, error)
}

// BuildText validates m and returns its body.
func BuildText(m Text) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p := newPayload(m.To, "text")
	p.RecipientType = ""
	p.Text = &TextBody{PreviewURL: false, Body: m.Message}
	return p, nil
}

// BuildButtons validates m and returns its body.
func BuildButtons(m Buttons) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	replies := make([]ReplyButton, 0, len(m.Buttons))
	for _, b := range m.Buttons {
		replies = append(replies, ReplyButton{Type: "reply", Reply: b})
	}
	p := newPayload(m.To, "interactive")
	p.Interactive = &Interactive{
		Type:   "button",
		Body:   InteractiveText{Text: m.Message},
		Action: InteractiveAction{Buttons: replies},
	}
	return p, nil
}

// BuildList validates m and returns its body.
func BuildList(m List) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	sections := make([]ListSection, 0, len(m.Sections))
	for _, s := range m.Sections {
		sections = append(sections, ListSection{Title: s.Title, Rows: append([]ListRow(nil), s.Rows...)})
	}
	p := newPayload(m.To, "interactive")
	p.Interactive = &Interactive{
		Type:   "list",
		Header: &InteractiveHeader{Type: "text", Text: m.HeaderText},
		Body:   InteractiveText{Text: m.BodyText},
		Footer: &InteractiveText{Text: m.FooterText},
		Action: InteractiveAction{Button: m.label(), Sections: sections},
	}
	return p, nil
}

// BuildImage validates m and returns its body. A local file is uploaded and
// resolved first; the body links the resolved URL, never the local path.
func BuildImage(ctx context.Context, m Image, resolver MediaResolver) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	link := m.URL
	if m.Local() {
		if resolver == nil {
			return nil, ErrNoResolver
		}
		uploaded, err := resolver.Upload(ctx, media.LocalFile{Path: m.FilePath, FileName: m.FileName, Kind: media.KindImage})
		if err != nil {
			return nil, err
		}
		resolved, err := resolver.Resolve(ctx, uploaded.ID)
		if err != nil {
			return nil, err
		}
		link = resolved.URL
	}

	p := newPayload(m.To, "image")
	p.Image = &ImageBody{Link: link, Caption: m.Caption}
	return p, nil
}

// BuildDocument validates m and returns its body. A local file is uploaded
// and referenced by media id and file name.
func BuildDocument(ctx context.Context, m Document, resolver MediaResolver) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	doc := &DocumentBody{Caption: m.Caption}
	if m.Local() {
		if resolver == nil {
			return nil, ErrNoResolver
		}
		uploaded, err := resolver.Upload(ctx, media.LocalFile{Path: m.FilePath, FileName: m.FileName, Kind: media.KindDocument})
		if err != nil {
			return nil, err
		}
		doc.ID = uploaded.ID
		doc.FileName = uploaded.FileName
	} else {
		doc.Link = m.URL
		doc.FileName = m.FileName
	}

	p := newPayload(m.To, "document")
	p.Document = doc
	return p, nil
}

// BuildLocation validates m and returns its body.
func BuildLocation(m Location) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p := newPayload(m.To, "location")
	p.Location = &LocationBody{
		Latitude:  *m.Latitude,
		Longitude: *m.Longitude,
		Name:      m.Name,
		Address:   m.Address,
	}
	return p, nil
}

// BuildContact validates m and returns a body carrying the sample card.
func BuildContact(m Contact) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p := newPayload(m.To, "contacts")
	p.RecipientType = ""
	p.Contacts = []ContactCard{SampleContact()}
	return p, nil
}

// BuildReadReceipt validates m and returns its body.
func BuildReadReceipt(m ReadReceipt) (*Payload, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Payload{
		MessagingProduct: transport.MessagingProduct,
		Status:           "read",
		MessageID:        m.MessageID,
	}, nil
}

// QRCodeQuery validates m and returns the query string for /message_qrdls.
func QRCodeQuery(m QRCode) (url.Values, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("prefilled_message", m.Message)
	q.Set("generate_qr_image", m.Format())
	return q, nil
}

// Build dispatches to the builder for req's kind. QR codes have no message
// body and are rejected.
func Build(ctx context.Context, req Request, resolver MediaResolver) (*Payload, error) {
	switch m := req.(type) {
	case Text:
		return BuildText(m)
	case Buttons:
		return BuildButtons(m)
	case List:
		return BuildList(m)
	case Image:
		return BuildImage(ctx, m, resolver)
	case Document:
		return BuildDocument(ctx, m, resolver)
	case Location:
		return BuildLocation(m)
	case Contact:
		return BuildContact(m)
	case ReadReceipt:
		return BuildReadReceipt(m)
	case nil:
		return nil, errors.New("message: request is nil")
	default:
		return nil, fmt.Errorf("message: %s has no message body", req.Kind())
	}
}
