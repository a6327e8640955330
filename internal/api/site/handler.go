// Package site serves the rendered artifacts from the output directory.
package site

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/status-page-server/internal/api/common"
)

var contentTypes = map[string]string{
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".xml":  "application/atom+xml; charset=utf-8",
}

const defaultContentType = "text/plain; charset=utf-8"

// indexFiles are tried in order when a directory is requested
var indexFiles = []string{"index.html", "index.htm"}

// ContentType returns the content type served for name
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}

// Router serves files below root. Incident pages are also reachable as /incidents/{id}.
func Router(root string) http.Handler {
	h := &handler{root: os.DirFS(root)}

	r := chi.NewRouter()
	r.Get("/incidents/{id}", h.incident)
	r.Get("/*", h.file)
	r.Head("/*", h.file)
	return r
}

type handler struct {
	root fs.FS
}

func (h *handler) incident(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetIDParam(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.serve(w, r, strconv.FormatInt(id, 10)+".html")
}

func (h *handler) file(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}
	h.serve(w, r, name)
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request, name string) {
	if name != "." && !filepath.IsLocal(name) {
		http.NotFound(w, r)
		return
	}

	info, err := fs.Stat(h.root, name)
	if err == nil && info.IsDir() {
		name, info, err = h.index(name)
	}
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.ErrorContext(r.Context(), "Failed to stat site file", "path", name, "error", err)
		}
		http.NotFound(w, r)
		return
	}

	f, err := h.root.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ContentType(name))
	http.ServeContent(w, r, name, info.ModTime(), rs)
}

func (h *handler) index(dir string) (string, fs.FileInfo, error) {
	for _, idx := range indexFiles {
		name := path.Join(dir, idx)
		info, err := fs.Stat(h.root, name)
		if err == nil && !info.IsDir() {
			return name, info, nil
		}
	}
	return "", nil, fs.ErrNotExist
}
