// wacloud sends a single WhatsApp Cloud API request from the command line and
// prints the normalized result as JSON.
//
// Credentials come from the environment (or a .env file) the same way the
// worker loads them. With --dry-run the request goes to an in-process fake
// Graph API instead, and no credentials are needed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/cloudapi"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/cloudapi/fake"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/config"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/logger"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/response"
)

const name = "wacloud"

// errRequestFailed marks a provider failure that was already printed.
var errRequestFailed = errors.New("request failed")

type flags struct {
	kind      string
	to        string
	text      string
	file      string
	url       string
	caption   string
	filename  string
	lat       float64
	lng       float64
	name      string
	address   string
	messageID string
	buttons   []string
	qrFormat  string
	timeout   time.Duration
	dryRun    bool
	logLevel  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		if !errors.Is(err, errRequestFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f flags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	req, err := buildRequest(fs, f)
	if err != nil {
		return err
	}

	log, err := logger.New(name, "development", f.logLevel, zerolog.ConsoleWriter{Out: stderr, NoColor: true})
	if err != nil {
		return err
	}
	log = log.With().Str("request_id", uuid.NewString()).Str("kind", string(req.Kind())).Logger()

	cfg, cleanup, err := cloudConfig(f.dryRun, log)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := cloudapi.NewClient(cfg, logger.Component(log, "cloudapi"))
	if err != nil {
		return err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	res, sendErr := client.Send(ctx, req)
	log.Debug().Dur("duration", time.Since(start)).Bool("dry_run", f.dryRun).Msg("request completed")

	var failure *response.Failure
	switch {
	case sendErr == nil:
		return printJSON(stdout, res)
	case errors.As(sendErr, &failure):
		if err := printJSON(stdout, failure); err != nil {
			return err
		}
		return errRequestFailed
	default:
		return sendErr
	}
}

func newFlagSet(f *flags, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&f.kind, "kind", string(message.KindText), "message kind: text, buttons, image, document, location, contact, read or qr")
	fs.StringVar(&f.to, "to", "", "recipient phone number")
	fs.StringVar(&f.text, "text", "", "message text, button prompt or qr prefilled message")
	fs.StringVar(&f.file, "file", "", "local media file to upload")
	fs.StringVar(&f.url, "url", "", "remote media url")
	fs.StringVar(&f.caption, "caption", "", "media caption")
	fs.StringVar(&f.filename, "filename", "", "document file name shown to the recipient")
	fs.Float64Var(&f.lat, "lat", 0, "location latitude")
	fs.Float64Var(&f.lng, "lng", 0, "location longitude")
	fs.StringVar(&f.name, "name", "", "location name")
	fs.StringVar(&f.address, "address", "", "location address")
	fs.StringVar(&f.messageID, "message-id", "", "inbound message id to mark as read")
	fs.StringArrayVar(&f.buttons, "button", nil, "reply button as id:title (repeatable)")
	fs.StringVar(&f.qrFormat, "qr-format", message.QRImagePNG, "qr image format: png or svg")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "overall request timeout")
	fs.BoolVar(&f.dryRun, "dry-run", false, "send to an in-process fake Graph API")
	fs.StringVar(&f.logLevel, "log-level", "warn", "log level")
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s --kind KIND [flags]\n\n", name)
		fs.PrintDefaults()
	}
	return fs
}

// buildRequest maps flags onto the request for the selected kind. Validation
// of the values themselves is left to the client.
func buildRequest(fs *pflag.FlagSet, f flags) (message.Request, error) {
	media := message.MediaReference{FilePath: f.file, URL: f.url, FileName: f.filename}

	switch message.Kind(strings.ToLower(strings.TrimSpace(f.kind))) {
	case message.KindText:
		return message.Text{To: f.to, Message: f.text}, nil
	case message.KindButtons:
		buttons, err := parseButtons(f.buttons)
		if err != nil {
			return nil, err
		}
		return message.Buttons{To: f.to, Message: f.text, Buttons: buttons}, nil
	case message.KindImage:
		return message.Image{To: f.to, Caption: f.caption, MediaReference: media}, nil
	case message.KindDocument:
		return message.Document{To: f.to, Caption: f.caption, MediaReference: media}, nil
	case message.KindLocation:
		loc := message.Location{To: f.to, Name: f.name, Address: f.address}
		if fs.Changed("lat") {
			lat := f.lat
			loc.Latitude = &lat
		}
		if fs.Changed("lng") {
			lng := f.lng
			loc.Longitude = &lng
		}
		return loc, nil
	case message.KindContact:
		return message.Contact{To: f.to}, nil
	case message.KindRead:
		return message.ReadReceipt{MessageID: f.messageID}, nil
	case message.KindQRCode:
		return message.QRCode{Message: f.text, ImageType: f.qrFormat}, nil
	default:
		return nil, fmt.Errorf("unsupported --kind %q", f.kind)
	}
}

func parseButtons(values []string) ([]message.Button, error) {
	buttons := make([]message.Button, 0, len(values))
	for _, v := range values {
		id, title, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("invalid --button %q: expected id:title", v)
		}
		buttons = append(buttons, message.Button{ID: strings.TrimSpace(id), Title: strings.TrimSpace(title)})
	}
	return buttons, nil
}

func cloudConfig(dryRun bool, log zerolog.Logger) (config.CloudConfig, func(), error) {
	if !dryRun {
		cfg, err := config.LoadCloud()
		if err != nil {
			return config.CloudConfig{}, nil, err
		}
		return cfg.Cloud, func() {}, nil
	}

	srv := fake.NewServer(logger.Component(log, "fake-graph-api"))
	log.Info().Str("url", srv.URL()).Msg("dry run against fake graph api")
	return config.CloudConfig{
		AccessToken:         "dry-run-token",
		SenderPhoneNumberID: "100000000000000",
		APIBaseURL:          srv.URL(),
	}, srv.Close, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
