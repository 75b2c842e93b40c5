package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	waadapter "github.com/example/whatsapp-messaging/internal/adapters/whatsapp"
	"github.com/example/whatsapp-messaging/internal/config"
	"github.com/example/whatsapp-messaging/internal/logger"
	"github.com/example/whatsapp-messaging/internal/models"
	"github.com/example/whatsapp-messaging/internal/validator"
	"github.com/example/whatsapp-messaging/pkg/whatsapp"
)

// listFlag collects a repeatable string flag in order.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	to       string
	text     string
	template string
	lang     string
	header   string
	bodies   listFlag
	timeout  time.Duration
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid arguments")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if base, err := logger.New(cfg.App.Env, cfg.App.LogLevel); err == nil {
		log = logger.Component(*base, "whatsapp-send", "cli")
	}

	req, err := buildRequest(opts, time.Now().UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build request")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode request")
	}

	validated, err := validator.New(cfg.Worker, log).ParseAndValidate(context.Background(), payload)
	if err != nil {
		log.Fatal().Err(err).Msg("request rejected")
	}

	client, err := cfg.NewClient(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise whatsapp client")
	}
	adapter, err := waadapter.NewAdapter(client, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise whatsapp adapter")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	resp, err := adapter.Send(ctx, validated)
	if err != nil {
		ev := log.Error().Err(err)
		if resp != nil {
			ev = ev.Str("status", resp.Status).Interface("meta", resp.Meta)
		}
		ev.Msg("send failed")
		os.Exit(1)
	}

	log.Info().
		Str("message_id", validated.MessageID).
		Str("provider_id", resp.Meta["provider_id"]).
		Str("status", resp.Status).
		Msg("message accepted")
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("whatsapp-send", flag.ContinueOnError)
	fs.StringVar(&o.to, "to", "", "recipient phone number in E.164 form")
	fs.StringVar(&o.text, "text", "", "free-form text body")
	fs.StringVar(&o.template, "template", "", "approved template name")
	fs.StringVar(&o.lang, "lang", string(whatsapp.EnUS), "template language code")
	fs.StringVar(&o.header, "header", "", "template header text parameter")
	fs.Var(&o.bodies, "body", "template body text parameter (repeatable)")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Second, "overall send timeout")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch {
	case o.to == "":
		return o, errors.New("-to is required")
	case o.text == "" && o.template == "":
		return o, errors.New("one of -text or -template is required")
	case o.text != "" && o.template != "":
		return o, errors.New("-text and -template are mutually exclusive")
	}
	return o, nil
}

func buildRequest(o options, now time.Time) (*models.SendRequest, error) {
	req := &models.SendRequest{
		MessageID: uuid.NewString(),
		TraceID:   uuid.NewString(),
		CreatedAt: now,
		To:        o.to,
	}

	if o.text != "" {
		req.Type = models.RequestTypeText
		req.Text = &models.TextBody{Body: o.text}
		return req, nil
	}

	tmpl := whatsapp.NewTemplate(o.template, whatsapp.LanguageCode(o.lang))
	if o.header != "" {
		tmpl.AddHeader(o.header)
	}
	for _, b := range o.bodies {
		tmpl.AddBody(b)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	req.Type = models.RequestTypeTemplate
	req.Template = tmpl
	return req, nil
}
