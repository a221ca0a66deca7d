package httpapi

import (
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Options configures the HTTP layer. Zero values select defaults.
type Options struct {
	// StaticRoot is served read-only under /static/ and holds frontend.html.
	// Empty disables both.
	StaticRoot string
	// MaxBodyBytes bounds JSON request bodies (default 1 MiB).
	MaxBodyBytes int64
	// FeatureWidth is the required length of the features array (default 4).
	FeatureWidth int
	// CORS selects the cross-origin profile.
	CORS CORSOptions
	// Logger receives request logs. Nil disables them.
	Logger *zerolog.Logger
	// LogLevel is the default per-request log level (off|error|info|debug).
	LogLevel string
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}
