package httpapi

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"irisd/internal/common/fsutil"
	"irisd/pkg/types"
)

// frontendFile is the demo page looked up in the static root.
const frontendFile = "frontend.html"

// noListingFS hides directory listings; directories are served only when
// they contain an index.html.
type noListingFS struct{ fs http.FileSystem }

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		idx, err := n.fs.Open(filepath.ToSlash(filepath.Join(name, "index.html")))
		if err != nil {
			f.Close()
			return nil, os.ErrNotExist
		}
		idx.Close()
	}
	return f, nil
}

// mountStatic exposes root under /static/. Mounting is best-effort: an
// unusable root is logged and skipped. It reports whether the mount happened.
func (s *server) mountStatic(r chi.Router) bool {
	if s.opts.StaticRoot == "" {
		return false
	}
	root, err := fsutil.ResolveDir(s.opts.StaticRoot)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Str("static_root", s.opts.StaticRoot).Msg("static mount skipped")
		return false
	}
	s.staticRoot = root
	fs := http.StripPrefix("/static/", http.FileServer(noListingFS{http.Dir(root)}))
	r.Get("/static", http.RedirectHandler("/static/", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/static/*", fs.ServeHTTP)
	r.Head("/static/*", fs.ServeHTTP)
	return true
}

// handleUI serves the demo page. A missing page is answered with 200 and an
// error body, not 404.
func (s *server) handleUI(w http.ResponseWriter, r *http.Request) {
	if s.staticRoot != "" {
		p := filepath.Join(s.staticRoot, frontendFile)
		if fsutil.IsFile(p) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			http.ServeFile(w, r, p)
			return
		}
	}
	writeJSON(w, http.StatusOK, types.NotFoundResponse{Error: "frontend not found"})
}
