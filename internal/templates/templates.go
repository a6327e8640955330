// Package templates owns the page templates and static assets of the status site.
//
// A Set is parsed either from a directory on disk or from the defaults embedded
// in the binary. Reload swaps in a freshly parsed set only when parsing succeeds,
// so a broken edit never takes the site down: the last good set stays in use.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Names of the templates every set must define
const (
	IndexTemplate        = "index.html"
	InterventionTemplate = "intervention.html"
)

//go:embed defaults
var defaults embed.FS

// Set is the swappable collection of parsed page templates
type Set struct {
	mu   sync.RWMutex
	tmpl *template.Template

	dir string
}

// New parses the templates in dir, or the embedded defaults when dir is empty
func New(dir string) (*Set, error) {
	s := &Set{dir: dir}

	tmpl, err := s.parse()
	if err != nil {
		return nil, err
	}
	s.tmpl = tmpl
	return s, nil
}

// Dir returns the directory the set is loaded from, empty for the embedded defaults
func (s *Set) Dir() string {
	return s.dir
}

// Reload re-parses the templates. On failure the current set is kept and the error returned.
func (s *Set) Reload() error {
	tmpl, err := s.parse()
	if err != nil {
		slog.Warn("Template reload failed, keeping the previous templates", "dir", s.dir, "error", err)
		return err
	}

	s.mu.Lock()
	s.tmpl = tmpl
	s.mu.Unlock()

	slog.Info("Templates reloaded", "dir", s.dir)
	return nil
}

// Execute runs fn with the current templates while holding the read lock,
// so a whole render pass sees a single consistent set.
func (s *Set) Execute(fn func(t *template.Template) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.tmpl)
}

func (s *Set) parse() (*template.Template, error) {
	fsys, err := s.templatesFS()
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("site").Option("missingkey=error").ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	for _, name := range []string{IndexTemplate, InterventionTemplate} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("template %s is missing", name)
		}
	}
	return tmpl, nil
}

func (s *Set) templatesFS() (fs.FS, error) {
	if s.dir == "" {
		return fs.Sub(defaults, "defaults/templates")
	}
	return os.DirFS(s.dir), nil
}
