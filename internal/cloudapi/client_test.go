package cloudapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/cloudapi"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/cloudapi/fake"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/config"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/media"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/response"
)

const phoneID = "PN-1"

func newClient(t *testing.T, opts ...fake.Option) (*cloudapi.Client, *fake.Server) {
	t.Helper()
	srv := fake.NewServer(zerolog.Nop(), opts...)
	t.Cleanup(srv.Close)

	client, err := cloudapi.NewClient(config.CloudConfig{
		AccessToken:         "token",
		SenderPhoneNumberID: phoneID,
		BusinessAccountID:   "WABA-1",
		APIBaseURL:          srv.URL(),
	}, zerolog.Nop(), cloudapi.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func tempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := cloudapi.NewClient(config.CloudConfig{SenderPhoneNumberID: "1"}, zerolog.Nop()); !errors.Is(err, cloudapi.ErrMissingAccessToken) {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
	if _, err := cloudapi.NewClient(config.CloudConfig{AccessToken: "t"}, zerolog.Nop()); !errors.Is(err, cloudapi.ErrMissingSenderPhoneNumberID) {
		t.Fatalf("expected ErrMissingSenderPhoneNumberID, got %v", err)
	}
}

func TestNewClientWarnsOnVersionOverride(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	if _, err := cloudapi.NewClient(config.CloudConfig{AccessToken: "t", SenderPhoneNumberID: "1", GraphAPIVersion: "v19.0"}, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"warn"`)) || !bytes.Contains(buf.Bytes(), []byte("v19.0")) {
		t.Fatalf("expected version warning, got %s", buf.String())
	}

	buf.Reset()
	if _, err := cloudapi.NewClient(config.CloudConfig{AccessToken: "t", SenderPhoneNumberID: "1"}, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("default version must not warn, got %s", buf.String())
	}
}

func TestSendTextRoundTrip(t *testing.T) {
	client, srv := newClient(t)

	res, err := client.SendText(context.Background(), message.Text{To: "15551234567", Message: "Hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != response.StatusSuccess || len(res.MessageIDs()) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 || reqs[0].Method != http.MethodPost || reqs[0].Path != "/v13.0/"+phoneID+"/messages" {
		t.Fatalf("unexpected requests %v", srv.Paths())
	}
	if got := reqs[0].Header.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("unexpected authorization %s", got)
	}

	var body map[string]any
	if err := reqs[0].JSON(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	text := body["text"].(map[string]any)
	if body["type"] != "text" || text["body"] != "Hello" || text["preview_url"] != false {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestValidationFailsBeforeNetwork(t *testing.T) {
	client, srv := newClient(t)

	_, err := client.SendButtons(context.Background(), message.Buttons{
		To:      "1555",
		Message: "pick",
		Buttons: []message.Button{{ID: "a", Title: "this title is far too long"}},
	})
	if !errors.Is(err, message.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = client.SendImage(context.Background(), message.Image{
		To:             "1555",
		MediaReference: message.MediaReference{FilePath: "/tmp/a.png", URL: "https://x/a.png"},
	})
	if !errors.Is(err, message.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(srv.Requests()) != 0 {
		t.Fatalf("no network call expected, got %v", srv.Paths())
	}
}

func TestSendImageUploadsThenResolves(t *testing.T) {
	client, srv := newClient(t)
	path := tempFile(t, "cat.png", "png-bytes")

	res, err := client.SendImage(context.Background(), message.Image{
		To:             "1555",
		Caption:        "cat",
		MediaReference: message.MediaReference{FilePath: path},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paths := srv.Paths()
	want := []string{
		"POST /v13.0/" + phoneID + "/media",
		"GET /v13.0/media-1",
		"POST /v13.0/" + phoneID + "/messages",
	}
	if len(paths) != len(want) {
		t.Fatalf("unexpected calls %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("call %d = %s, want %s", i, paths[i], want[i])
		}
	}

	wantLink := srv.URL() + "/download/media-1"
	if res.Body.Image.Link != wantLink {
		t.Fatalf("image link = %s, want %s", res.Body.Image.Link, wantLink)
	}
	if res.Body.Image.Link == path {
		t.Fatalf("image link must not be the local path")
	}
	if res.Result == nil || res.Result.Status != response.StatusSuccess {
		t.Fatalf("unexpected result %+v", res.Result)
	}
}

func TestSendDocumentFromFile(t *testing.T) {
	client, srv := newClient(t)
	path := tempFile(t, "report.pdf", "%PDF")

	res, err := client.SendDocument(context.Background(), message.Document{
		To:             "1555",
		MediaReference: message.MediaReference{FilePath: path, FileName: "Q3 report.pdf"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Body.Document.ID != "media-1" || res.Body.Document.FileName != "Q3 report.pdf" {
		t.Fatalf("unexpected document %+v", res.Body.Document)
	}
	if len(srv.Requests()) != 2 {
		t.Fatalf("expected upload and send only, got %v", srv.Paths())
	}
}

func TestSendImageProviderFailureKeepsBody(t *testing.T) {
	client, _ := newClient(t, fake.WithScenario(fake.ScenarioPermanent))

	res, err := client.SendImage(context.Background(), message.Image{
		To:             "1555",
		MediaReference: message.MediaReference{URL: "https://cdn.test/a.png"},
	})
	var failure *response.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if failure.Code() != 131030 || failure.Transient() {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if res == nil || res.Body == nil || res.Body.Image.Link != "https://cdn.test/a.png" {
		t.Fatalf("expected body on failure, got %+v", res)
	}
}

func TestProviderFailuresAreNormalized(t *testing.T) {
	client, srv := newClient(t, fake.WithScenario(fake.ScenarioTransient))

	_, err := client.SendText(context.Background(), message.Text{To: "1555", Message: "hi"})
	var failure *response.Failure
	if !errors.As(err, &failure) || !failure.Transient() || failure.Code() != 130429 {
		t.Fatalf("expected transient failure, got %v", err)
	}

	srv.SetScenario(fake.ScenarioMalformed)
	_, err = client.SendText(context.Background(), message.Text{To: "1555", Message: "hi"})
	if !errors.As(err, &failure) {
		t.Fatalf("expected failure, got %v", err)
	}
	encoded, _ := json.Marshal(failure)
	var flat map[string]any
	_ = json.Unmarshal(encoded, &flat)
	if flat["status"] != "failed" || flat["error"] != "<html><body>502 Bad Gateway</body></html>" {
		t.Fatalf("unexpected failure encoding %v", flat)
	}
}

func TestMarkAsReadAlwaysSucceeds(t *testing.T) {
	for _, scenario := range []fake.Scenario{fake.ScenarioSuccess, fake.ScenarioPermanent, fake.ScenarioTransient, fake.ScenarioMalformed} {
		scenario := scenario
		t.Run(string(scenario), func(t *testing.T) {
			client, srv := newClient(t, fake.WithScenario(scenario))
			res, err := client.MarkAsRead(context.Background(), message.ReadReceipt{MessageID: "wamid.IN"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != response.StatusSuccess {
				t.Fatalf("expected success, got %+v", res)
			}
			var body map[string]any
			_ = srv.Requests()[0].JSON(&body)
			if body["status"] != "read" || body["message_id"] != "wamid.IN" {
				t.Fatalf("unexpected body %v", body)
			}
		})
	}

	client, _ := newClient(t)
	if _, err := client.MarkAsRead(context.Background(), message.ReadReceipt{}); !errors.Is(err, message.ErrValidation) {
		t.Fatalf("missing message id must still fail validation, got %v", err)
	}
}

func TestCreateQRCode(t *testing.T) {
	client, srv := newClient(t)

	res, err := client.CreateQRCode(context.Background(), message.QRCode{Message: "hi there", ImageType: "svg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var qr struct {
		Code             string `json:"code"`
		PrefilledMessage string `json:"prefilled_message"`
	}
	if err := res.Decode(&qr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if qr.Code == "" || qr.PrefilledMessage != "hi there" {
		t.Fatalf("unexpected qr %+v", qr)
	}
	req := srv.Requests()[0]
	if req.Path != "/v13.0/"+phoneID+"/message_qrdls" || req.Query != "generate_qr_image=svg&prefilled_message=hi+there" {
		t.Fatalf("unexpected request %s?%s", req.Path, req.Query)
	}
}

func TestRetrieveAndDownloadMedia(t *testing.T) {
	client, _ := newClient(t, fake.WithMediaContent([]byte("jpeg")))

	resolved, err := client.RetrieveMedia(context.Background(), "media-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var buf bytes.Buffer
	n, err := client.DownloadMedia(context.Background(), resolved.URL, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 || buf.String() != "jpeg" {
		t.Fatalf("unexpected download n=%d body=%q", n, buf.String())
	}
}

func TestUploadMedia(t *testing.T) {
	client, _ := newClient(t)
	path := tempFile(t, "voice.ogg", "ogg")

	uploaded, err := client.UploadMedia(context.Background(), media.LocalFile{Path: path, Kind: media.KindAudio})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uploaded.ID == "" || uploaded.FileName != "voice.ogg" {
		t.Fatalf("unexpected upload %+v", uploaded)
	}
}

func TestSendDispatchesByKind(t *testing.T) {
	client, srv := newClient(t)
	lat, lng := 1.5, 2.5

	requests := []message.Request{
		message.Text{To: "1", Message: "x"},
		message.Location{To: "1", Latitude: &lat, Longitude: &lng, Name: "n", Address: "a"},
		message.Contact{To: "1"},
		message.Document{To: "1", MediaReference: message.MediaReference{URL: "https://cdn.test/a.pdf"}},
	}
	for _, req := range requests {
		if _, err := client.Send(context.Background(), req); err != nil {
			t.Fatalf("send %s: %v", req.Kind(), err)
		}
	}
	if len(srv.Requests()) != len(requests) {
		t.Fatalf("expected one call per request, got %v", srv.Paths())
	}
}

func TestParseMessageFiltersByBusinessAccount(t *testing.T) {
	client, _ := newClient(t)
	payload := `{"object":"whatsapp_business_account","entry":[
		{"id":"WABA-1","changes":[{"field":"messages","value":{"messages":[{"from":"1","id":"a","timestamp":"1","type":"text","text":{"body":"mine"}}]}}]},
		{"id":"WABA-2","changes":[{"field":"messages","value":{"messages":[{"from":"2","id":"b","timestamp":"1","type":"text","text":{"body":"other"}}]}}]}
	]}`

	n, err := client.ParseMessage([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Events) != 1 || n.Events[0].Text != "mine" {
		t.Fatalf("unexpected events %+v", n.Events)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	client, srv := newClient(t)
	ctx := context.Background()

	calls := []func() error{
		func() error { _, err := client.SendVideo(ctx, "1", "c", "https://x"); return err },
		func() error { _, err := client.SendAudio(ctx, "1", "https://x"); return err },
		func() error { _, err := client.SendSticker(ctx, "1", "https://x"); return err },
		func() error { _, err := client.SendChatAction(ctx, "1", "typing"); return err },
		func() error { _, err := client.GetUserProfile(ctx, "1"); return err },
		func() error { _, err := client.GetUserStatus(ctx, "1"); return err },
		func() error { _, err := client.GetUserProfilePicture(ctx, "1"); return err },
		func() error { _, err := client.GetUserStatusPicture(ctx, "1"); return err },
	}
	for i, call := range calls {
		if err := call(); !errors.Is(err, cloudapi.ErrNotImplemented) {
			t.Fatalf("call %d: expected ErrNotImplemented, got %v", i, err)
		}
	}
	if len(srv.Requests()) != 0 {
		t.Fatalf("unsupported operations must not hit the network")
	}
}
