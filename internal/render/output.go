package render

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const artifactMode = 0o644

// stage collects the artifacts of one pass as temp files next to their final
// location. Nothing is visible until commit renames them into place.
type stage struct {
	root   string
	staged []stagedFile
}

type stagedFile struct {
	tmp   string
	final string
}

func newStage(root string) (*stage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &stage{root: root}, nil
}

// add writes data to a temp file for the artifact at rel, a slash separated path under root
func (s *stage) add(rel string, data []byte) error {
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("artifact path %q escapes the output directory", rel)
	}

	final := filepath.Join(s.root, rel)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(final)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", rel, err)
	}
	s.staged = append(s.staged, stagedFile{tmp: f.Name(), final: final})

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := f.Chmod(artifactMode); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to set mode of %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", rel, err)
	}
	return nil
}

// commit renames every staged file into place. Temp files left by a failed rename are removed.
func (s *stage) commit() error {
	for i, f := range s.staged {
		if err := os.Rename(f.tmp, f.final); err != nil {
			s.staged = s.staged[i:]
			s.abort()
			return fmt.Errorf("failed to move %s into place: %w", f.final, err)
		}
	}
	s.staged = nil
	return nil
}

// abort removes every staged temp file
func (s *stage) abort() {
	var errs []error
	for _, f := range s.staged {
		if err := os.Remove(f.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.staged = nil
	if err := errors.Join(errs...); err != nil {
		slog.Warn("Failed to remove temp artifacts", "dir", s.root, "error", err)
	}
}

func (s *stage) count() int {
	return len(s.staged)
}
