// Package message validates outbound WhatsApp messages and assembles the
// canonical Graph API request bodies for them.
package message

import (
	"fmt"
	"strings"
)

// Kind identifies an outbound message variant.
type Kind string

const (
	KindText     Kind = "text"
	KindButtons  Kind = "buttons"
	KindList     Kind = "list"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindLocation Kind = "location"
	KindContact  Kind = "contact"
	KindRead     Kind = "read"
	KindQRCode   Kind = "qr"
)

// Provider limits.
const (
	MaxButtonTitleLen    = 20
	MaxButtonIDLen       = 256
	MaxRowIDLen          = 200
	MaxRowTitleLen       = 24
	MaxRowDescriptionLen = 72
	MaxListRows          = 10
	MaxQRMessageLen      = 140
)

// DefaultActionLabel is the list menu button text used when none is given.
const DefaultActionLabel = "Select a product"

// QR image formats.
const (
	QRImagePNG = "png"
	QRImageSVG = "svg"
)

// Request is implemented by every outbound message variant.
type Request interface {
	Kind() Kind
	Validate() error
}

// Text is a plain text message. Link previews are disabled.
type Text struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (Text) Kind() Kind { return KindText }

func (m Text) Validate() error {
	if err := requireString("to", m.To); err != nil {
		return err
	}
	return requireString("message", m.Message)
}

// Button is a quick reply button.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// validate checks the button bounds, naming fields relative to prefix.
func (b Button) validate(prefix string) error {
	if err := requireLength(prefix+".title", b.Title, 1, MaxButtonTitleLen); err != nil {
		return err
	}
	return requireLength(prefix+".id", b.ID, 1, MaxButtonIDLen)
}

// Buttons is an interactive message with reply buttons. A single invalid
// button rejects the whole message.
type Buttons struct {
	To      string   `json:"to"`
	Message string   `json:"message"`
	Buttons []Button `json:"buttons"`
}

func (Buttons) Kind() Kind { return KindButtons }

func (m Buttons) Validate() error {
	if err := requireString("to", m.To); err != nil {
		return err
	}
	if err := requireString("message", m.Message); err != nil {
		return err
	}
	if len(m.Buttons) == 0 {
		return &ValidationError{Field: "buttons", Constraint: "must contain at least one button"}
	}
	for i, b := range m.Buttons {
		if err := b.validate(fmt.Sprintf("buttons[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// ListRow is one selectable row of a list section.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListSection groups rows under a title.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// List is an interactive list message. All sections together hold at most
// MaxListRows rows.
type List struct {
	To          string        `json:"to"`
	HeaderText  string        `json:"header_text"`
	BodyText    string        `json:"body_text"`
	FooterText  string        `json:"footer_text"`
	ActionLabel string        `json:"action_label,omitempty"`
	Sections    []ListSection `json:"sections"`
}

func (List) Kind() Kind { return KindList }

func (m List) Validate() error {
	if err := requireString("to", m.To); err != nil {
		return err
	}
	if err := requireString("header_text", m.HeaderText); err != nil {
		return err
	}
	if err := requireString("body_text", m.BodyText); err != nil {
		return err
	}
	if err := requireString("footer_text", m.FooterText); err != nil {
		return err
	}
	if len(m.Sections) == 0 {
		return &ValidationError{Field: "sections", Constraint: "must contain at least one section"}
	}

	total := 0
	for i, section := range m.Sections {
		field := fmt.Sprintf("sections[%d]", i)
		if err := requireString(field+".title", section.Title); err != nil {
			return err
		}
		if len(section.Rows) == 0 {
			return &ValidationError{Field: field + ".rows", Constraint: "must contain at least one row"}
		}
		for j, row := range section.Rows {
			rowField := fmt.Sprintf("%s.rows[%d]", field, j)
			if err := requireLength(rowField+".id", row.ID, 1, MaxRowIDLen); err != nil {
				return err
			}
			if err := requireLength(rowField+".title", row.Title, 1, MaxRowTitleLen); err != nil {
				return err
			}
			if err := requireLength(rowField+".description", row.Description, 1, MaxRowDescriptionLen); err != nil {
				return err
			}
		}
		total += len(section.Rows)
	}
	if total > MaxListRows {
		return &ValidationError{
			Field:      "sections",
			Constraint: fmt.Sprintf("must contain at most %d rows in total", MaxListRows),
			Value:      total,
		}
	}
	return nil
}

// label returns the action button text.
func (m List) label() string {
	if blank(m.ActionLabel) {
		return DefaultActionLabel
	}
	return m.ActionLabel
}

// MediaReference points at a local file or a public URL, never both.
type MediaReference struct {
	FilePath string `json:"file_path,omitempty"`
	FileName string `json:"file_name,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Local reports whether the reference needs an upload.
func (r MediaReference) Local() bool {
	return !blank(r.FilePath)
}

func (r MediaReference) validate() error {
	hasFile, hasURL := !blank(r.FilePath), !blank(r.URL)
	switch {
	case hasFile && hasURL:
		return &ValidationError{
			Field:      "file_path",
			Constraint: "cannot be combined with url; provide either file_path or url",
			Value:      r.FilePath,
		}
	case !hasFile && !hasURL:
		return &ValidationError{Field: "file_path", Constraint: "or url is required; provide either file_path or url"}
	}
	return nil
}

// Image is an image message with an optional caption.
type Image struct {
	To      string `json:"to"`
	Caption string `json:"caption,omitempty"`
	MediaReference
}

func (Image) Kind() Kind { return KindImage }

func (m Image) Validate() error {
	if err := requireString("to", m.To); err != nil {
		return err
	}
	return m.MediaReference.validate()
}

// Document is a document message. The caption defaults to empty.
type Document struct {
	To      string `json:"to"`
	Caption string `json:"caption,omitempty"`
	MediaReference
}

func (Document) Kind() Kind { return KindDocument }

func (m Document) Validate() error {
	if err := requireString("to", m.To); err != nil {
		return err
	}
	return m.MediaReference.validate()
}

// Location is a location card. Coordinates, name and address are all required.
type Location struct {
	To        string   `json:"to"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
}

func (Location) Kind() Kind { return KindLocation }

func (m Location) Validate() error {
	if err := requireString("to", m.To); err != nil {
		return err
	}
	if m.Latitude == nil {
		return required("latitude")
	}
	if m.Longitude == nil {
		return required("longitude")
	}
	if lat := *m.Latitude; lat < -90 || lat > 90 {
		return &ValidationError{Field: "latitude", Constraint: "must be between -90 and 90", Value: lat}
	}
	if lng := *m.Longitude; lng < -180 || lng > 180 {
		return &ValidationError{Field: "longitude", Constraint: "must be between -180 and 180", Value: lng}
	}
	if err := requireString("name", m.Name); err != nil {
		return err
	}
	return requireString("address", m.Address)
}

// Contact sends the sample contact card to the recipient.
type Contact struct {
	To string `json:"to"`
}

func (Contact) Kind() Kind { return KindContact }

func (m Contact) Validate() error {
	return requireString("to", m.To)
}

// ReadReceipt marks an inbound message as read.
type ReadReceipt struct {
	MessageID string `json:"message_id"`
}

func (ReadReceipt) Kind() Kind { return KindRead }

func (m ReadReceipt) Validate() error {
	return requireString("message_id", m.MessageID)
}

// QRCode requests a QR code that opens a chat prefilled with Message.
type QRCode struct {
	Message   string `json:"message"`
	ImageType string `json:"image_type,omitempty"`
}

func (QRCode) Kind() Kind { return KindQRCode }

func (m QRCode) Validate() error {
	if err := requireString("message", m.Message); err != nil {
		return err
	}
	if err := maxLength("message", m.Message, MaxQRMessageLen); err != nil {
		return err
	}
	switch m.Format() {
	case QRImagePNG, QRImageSVG:
		return nil
	}
	return &ValidationError{Field: "image_type", Constraint: `must be either "png" or "svg"`, Value: m.ImageType}
}

// Format returns the requested image format, defaulting to png.
func (m QRCode) Format() string {
	f := strings.ToLower(strings.TrimSpace(m.ImageType))
	if f == "" {
		return QRImagePNG
	}
	return f
}
