package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/cors"
)

// CORS profile names.
const (
	CORSProfileOff        = "off"
	CORSProfileDev        = "dev"
	CORSProfileProduction = "production"
)

// CORSOptions selects a cross-origin profile. The dev profile allows every
// origin, method and header with credentials and is meant for local work
// only; production requires an explicit origin allow-list.
type CORSOptions struct {
	Profile string
	Origins []string
	MaxAge  int
}

var devMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// corsMiddleware returns nil when CORS is disabled.
func corsMiddleware(o CORSOptions) (func(http.Handler) http.Handler, error) {
	maxAge := o.MaxAge
	if maxAge <= 0 {
		maxAge = 300
	}
	switch o.Profile {
	case "", CORSProfileOff:
		return nil, nil
	case CORSProfileDev:
		// An origin func makes go-chi/cors echo the request origin instead
		// of "*", which browsers reject alongside credentials.
		return cors.Handler(cors.Options{
			AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
			AllowedMethods:   devMethods,
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           maxAge,
		}), nil
	case CORSProfileProduction:
		if len(o.Origins) == 0 {
			return nil, fmt.Errorf("cors profile %q requires an origin allow-list", CORSProfileProduction)
		}
		return cors.Handler(cors.Options{
			AllowedOrigins: append([]string(nil), o.Origins...),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         maxAge,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cors profile %q", o.Profile)
	}
}
