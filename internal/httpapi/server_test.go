package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"irisd/internal/features"
	"irisd/internal/predictor"
	"irisd/pkg/types"
)

type mockService struct {
	label   string
	ready   bool
	err     error
	calls   int
	lastRow []float64
}

func (m *mockService) Ready() bool { return m.ready }
func (m *mockService) Predict(x mat.Matrix) (predictor.Prediction, error) {
	m.calls++
	m.lastRow = mat.Row(nil, 0, x)
	if m.err != nil {
		return predictor.Prediction{}, m.err
	}
	return predictor.Prediction{Label: m.label}, nil
}

func newMux(t *testing.T, svc Service, opts Options) http.Handler {
	t.Helper()
	h, err := NewMux(svc, opts)
	if err != nil {
		t.Fatalf("new mux: %v", err)
	}
	return h
}

func postPredict(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return body
}

func TestRoot(t *testing.T) {
	h := newMux(t, &mockService{}, Options{})
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
			t.Fatalf("content-type=%s", ct)
		}
		var body types.MessageResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("json: %v", err)
		}
		if body.Message != "Iris model API" {
			t.Fatalf("message=%q", body.Message)
		}
		// Interleave a predict call; / must not change.
		postPredict(h, `{"features":[1,2,3,4]}`)
	}
}

func TestPredictReturnsLabel(t *testing.T) {
	svc := &mockService{label: "setosa", ready: true}
	h := newMux(t, svc, Options{})
	w := postPredict(h, `{"features": [5.1, 3.5, 1.4, 0.2]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.PredictResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.PredictedClass != "setosa" {
		t.Fatalf("predicted_class=%q", body.PredictedClass)
	}
	if len(svc.lastRow) != 4 || svc.lastRow[0] != 5.1 || svc.lastRow[3] != 0.2 {
		t.Fatalf("row=%v", svc.lastRow)
	}
}

func TestPredictValidationErrors(t *testing.T) {
	bodies := []string{
		`{"features": [1, 2]}`,
		`{"features": [1, 2, 3, 4, 5]}`,
		`{"features": ["a", 2, 3, 4]}`,
		`{"features": "1,2,3,4"}`,
		`{"other": [1, 2, 3, 4]}`,
		`not-json`,
		``,
		`{"features":[1,2,3,4]} garbage`,
		`{"features":[1,2,3,4]}{"features":"x"}`,
	}
	for _, b := range bodies {
		svc := &mockService{label: "setosa"}
		h := newMux(t, svc, Options{})
		w := postPredict(h, b)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: status=%d", b, w.Code)
		}
		if e := decodeError(t, w); e.Code != http.StatusBadRequest || e.Error == "" {
			t.Fatalf("%q: body=%+v", b, e)
		}
		if svc.calls != 0 {
			t.Fatalf("%q: model invoked on invalid input", b)
		}
	}
}

func TestPredictShortVectorMessage(t *testing.T) {
	h := newMux(t, &mockService{}, Options{})
	w := postPredict(h, `{"features": [1, 2]}`)
	if e := decodeError(t, w); e.Error != "features must contain exactly 4 values, got 2" {
		t.Fatalf("error=%q", e.Error)
	}
}

func TestPredictErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&predictor.ModelInferenceError{Reason: "bad index"}, http.StatusInternalServerError},
		{predictor.ErrDependencyUnavailable("model not loaded"), http.StatusServiceUnavailable},
		{&features.ValidationError{Field: "features", Reason: "is required"}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		h := newMux(t, &mockService{err: c.err}, Options{})
		w := postPredict(h, `{"features": [1, 2, 3, 4]}`)
		if w.Code != c.want {
			t.Fatalf("%v: status=%d want %d", c.err, w.Code, c.want)
		}
		if e := decodeError(t, w); e.Code != c.want {
			t.Fatalf("%v: body code=%d", c.err, e.Code)
		}
	}
}

func TestPredictNilService(t *testing.T) {
	h := newMux(t, nil, Options{})
	w := postPredict(h, `{"features": [1, 2, 3, 4]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPredictUnsupportedMediaType(t *testing.T) {
	h := newMux(t, &mockService{}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(`{"features":[1,2,3,4]}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestPredictWithoutContentType(t *testing.T) {
	svc := &mockService{label: "setosa"}
	h := newMux(t, svc, Options{})
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(`{"features":[5.1,3.5,1.4,0.2]}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("calls=%d", svc.calls)
	}
}

func TestPredictBodyTooLarge(t *testing.T) {
	h := newMux(t, &mockService{}, Options{MaxBodyBytes: 64})
	big := `{"features": [1, 2, 3, 4], "pad": "` + strings.Repeat("a", 128) + `"}`
	w := postPredict(h, big)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestPredictMethodNotAllowed(t *testing.T) {
	h := newMux(t, &mockService{}, Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUIServesFrontend(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "frontend.html"), []byte("<html>iris</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h := newMux(t, &mockService{}, Options{StaticRoot: root})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ui", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content-type=%s", ct)
	}
	if !strings.Contains(w.Body.String(), "iris") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestUIMissingFrontendIs200(t *testing.T) {
	for _, root := range []string{"", t.TempDir()} {
		h := newMux(t, &mockService{}, Options{StaticRoot: root})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ui", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("root %q: status=%d", root, w.Code)
		}
		var body types.NotFoundResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("json: %v", err)
		}
		if body.Error != "frontend not found" {
			t.Fatalf("error=%q", body.Error)
		}
	}
}

func TestStaticMount(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	h := newMux(t, &mockService{}, Options{StaticRoot: root})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "console.log") {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing file status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/assets/", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("directory listing status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/static/app.js", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("write method status=%d", w.Code)
	}
}

func TestStaticMountBestEffort(t *testing.T) {
	h, err := NewMux(&mockService{}, Options{StaticRoot: filepath.Join(t.TempDir(), "absent")})
	if err != nil {
		t.Fatalf("missing static root must not fail startup: %v", err)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/x", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("root status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	w := httptest.NewRecorder()
	newMux(t, &mockService{ready: true}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	newMux(t, &mockService{ready: false}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthzAndSecurityHeader(t *testing.T) {
	w := httptest.NewRecorder()
	newMux(t, &mockService{}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("nosniff=%q", got)
	}
}
