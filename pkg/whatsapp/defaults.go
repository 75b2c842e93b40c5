// Package whatsapp is a client for the WhatsApp Cloud messages endpoint. It
// models text and template messages, serializes them to the platform's wire
// format and interprets the JSON success/error envelope that comes back.
package whatsapp

import "time"

// APIVersion is the Graph API version segment placed between the base URL and
// the phone number id.
type APIVersion string

// Known API versions.
const (
	APIVersion15 APIVersion = "v15.0"
	APIVersion16 APIVersion = "v16.0"
	APIVersion17 APIVersion = "v17.0"
	APIVersion18 APIVersion = "v18.0"
	APIVersion19 APIVersion = "v19.0"
	APIVersion20 APIVersion = "v20.0"
	APIVersion21 APIVersion = "v21.0"
)

const (
	// DefaultBaseURL is the production root of the Cloud API.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultAPIVersion is the baseline version the message model was written against.
	DefaultAPIVersion = APIVersion15
	// DefaultRateLimit is the platform's documented per-number throughput
	// (messages per second). The client does not enforce it.
	DefaultRateLimit = 200
	// DefaultTimeout bounds a single HTTP round trip made by HTTPTransport.
	DefaultTimeout = 3 * time.Second

	// MessagingProduct is the constant product marker carried by every envelope.
	MessagingProduct = "whatsapp"

	defaultBodyLimit = 1 << 20
)
