package config

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-messaging/pkg/whatsapp"
)

// ClientOptions converts the WhatsApp section into client options. The
// transport gets an http.Client bounded by the configured timeout.
func (w WhatsAppConfig) ClientOptions(logger zerolog.Logger) whatsapp.Options {
	return whatsapp.Options{
		BaseURL:    w.BaseURL,
		APIVersion: whatsapp.APIVersion(w.APIVersion),
		Transport:  whatsapp.NewHTTPTransport(&http.Client{Timeout: w.Timeout()}),
		Debug:      whatsapp.Bool(w.Debug),
		Logger:     logger,
	}
}

// NewClient builds a WhatsApp client from the loaded configuration.
func (c *Config) NewClient(logger zerolog.Logger) (*whatsapp.Client, error) {
	return whatsapp.NewClient(c.WhatsApp.PhoneNumberID, c.WhatsApp.AccessToken, c.WhatsApp.ClientOptions(logger))
}
