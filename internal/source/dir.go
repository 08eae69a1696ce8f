package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// DirProvider lists data files in the root of a filesystem.
type DirProvider struct {
	fsys fs.FS
	name string
}

// NewDirProvider serves files from an fs.FS.
func NewDirProvider(fsys fs.FS) *DirProvider {
	return &DirProvider{fsys: fsys, name: "directory"}
}

// NewOSDirProvider serves files from a directory on disk.
func NewOSDirProvider(dir string) *DirProvider {
	return NewDirProvider(os.DirFS(dir))
}

func (p *DirProvider) Name() string { return p.name }

func (p *DirProvider) ListFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsDataFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *DirProvider) FetchFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(p.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
