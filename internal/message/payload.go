package message

import "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/transport"

// Payload is the JSON body posted to {baseUrl}/messages. Only the fields of
// the message's type are populated.
type Payload struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type,omitempty"`
	To               string        `json:"to,omitempty"`
	Type             string        `json:"type,omitempty"`
	Status           string        `json:"status,omitempty"`
	MessageID        string        `json:"message_id,omitempty"`
	Text             *TextBody     `json:"text,omitempty"`
	Interactive      *Interactive  `json:"interactive,omitempty"`
	Image            *ImageBody    `json:"image,omitempty"`
	Document         *DocumentBody `json:"document,omitempty"`
	Location         *LocationBody `json:"location,omitempty"`
	Contacts         []ContactCard `json:"contacts,omitempty"`
}

const recipientIndividual = "individual"

func newPayload(to, typ string) *Payload {
	return &Payload{
		MessagingProduct: transport.MessagingProduct,
		RecipientType:    recipientIndividual,
		To:               to,
		Type:             typ,
	}
}

type TextBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type Interactive struct {
	Type   string             `json:"type"`
	Header *InteractiveHeader `json:"header,omitempty"`
	Body   InteractiveText    `json:"body"`
	Footer *InteractiveText   `json:"footer,omitempty"`
	Action InteractiveAction  `json:"action"`
}

type InteractiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type InteractiveText struct {
	Text string `json:"text"`
}

type InteractiveAction struct {
	Button   string        `json:"button,omitempty"`
	Buttons  []ReplyButton `json:"buttons,omitempty"`
	Sections []ListSection `json:"sections,omitempty"`
}

type ReplyButton struct {
	Type  string `json:"type"`
	Reply Button `json:"reply"`
}

type ImageBody struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

// DocumentBody carries either an uploaded media id or a public link.
type DocumentBody struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption"`
	FileName string `json:"filename,omitempty"`
}

type LocationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}
