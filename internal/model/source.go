package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Source opens artifact files by their bundle-relative name.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// DirSource reads a bundle from a local directory.
type DirSource struct {
	Dir string
}

// Open opens name inside the directory. Names cannot escape it.
func (d DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p := filepath.Join(d.Dir, filepath.FromSlash(path.Clean("/"+name)))
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d DirSource) String() string { return "dir:" + d.Dir }
