package templates

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// Asset is a static file copied verbatim into the output root
type Asset struct {
	// Path is slash separated and relative to the output root
	Path string
	Data []byte
}

// LoadAssets reads every regular file under dir, or the embedded defaults when dir
// is empty. Hidden files are skipped. Assets are returned in lexical path order.
func LoadAssets(dir string) ([]Asset, error) {
	var (
		fsys fs.FS
		err  error
	)
	if dir == "" {
		fsys, err = fs.Sub(defaults, "defaults/assets")
		if err != nil {
			return nil, err
		}
	} else {
		fsys = os.DirFS(dir)
	}

	var assets []Asset
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(path.Base(p), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		assets = append(assets, Asset{Path: p, Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	return assets, nil
}
