package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/mat"

	"irisd/internal/features"
	"irisd/internal/predictor"
	"irisd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Predict(x mat.Matrix) (predictor.Prediction, error)
	Ready() bool
}

// rootMessage is the fixed payload of GET /.
const rootMessage = "Iris model API"

type server struct {
	svc        Service
	opts       Options
	decoder    features.Decoder
	defLevel   LogLevel
	staticRoot string
}

// NewMux builds the router: /, /ui, /predict, /static/*, health, readiness
// and metrics endpoints.
func NewMux(svc Service, opts Options) (http.Handler, error) {
	opts = opts.withDefaults()
	s := &server{
		svc:      svc,
		opts:     opts,
		decoder:  features.NewDecoder(opts.FeatureWidth),
		defLevel: parseLevel(opts.LogLevel),
	}
	withCORS, err := corsMiddleware(opts.CORS)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if withCORS != nil {
		r.Use(withCORS)
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.MessageResponse{Message: rootMessage})
	})
	s.mountStatic(r)
	r.Get("/ui", s.handleUI)
	r.Post("/predict", s.handlePredict)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc != nil && svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r, nil
}

func (s *server) handlePredict(w http.ResponseWriter, r *http.Request) {
	lg := newRequestLog(s.opts.Logger, r, s.defLevel)

	// A missing Content-Type is read as JSON; any other type is refused.
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		observePredictionError("media_type")
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		lg.end("predict end", http.StatusUnsupportedMediaType, errors.New("unsupported media type"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	x, err := s.decoder.Decode(r.Body)
	if err != nil {
		// Oversized bodies surface here as invalid JSON; still 400.
		observePredictionError("validation")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		lg.end("predict end", http.StatusBadRequest, err)
		return
	}
	lg.debug("predict start", map[string]any{"features": mat.Row(nil, 0, x)})

	if s.svc == nil {
		err := predictor.ErrDependencyUnavailable("model not loaded")
		observePredictionError("unavailable")
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		lg.end("predict end", http.StatusServiceUnavailable, err)
		return
	}
	pred, err := s.svc.Predict(x)
	if err != nil {
		status := http.StatusInternalServerError
		var he HTTPError
		if errors.As(err, &he) {
			status = he.StatusCode()
		}
		observePredictionError(errorKind(err))
		writeJSONError(w, status, err.Error())
		lg.end("predict end", status, err)
		return
	}
	observePrediction(pred.Label)
	writeJSON(w, http.StatusOK, types.PredictResponse{PredictedClass: pred.Label})
	if pred.Scores != nil {
		lg.debug("predict scores", map[string]any{"label": pred.Label, "scores": pred.Scores})
	}
	lg.end("predict end", http.StatusOK, nil)
}

func errorKind(err error) string {
	switch {
	case features.IsValidation(err):
		return "validation"
	case predictor.IsModelInference(err):
		return "inference"
	case predictor.IsDependencyUnavailable(err):
		return "unavailable"
	default:
		return "internal"
	}
}
