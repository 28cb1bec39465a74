// Package dir stores configurations as JSON files in a directory, opened
// with a "dir://path" URI.
package dir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.miragespace.co/bundlecfg/store"
)

const (
	scheme = "dir"
	suffix = ".json"
)

type DirStore struct {
	root string
}

var _ store.Store = (*DirStore)(nil)

func init() {
	store.Register(scheme, NewDirStore)
}

func NewDirStore(root string) (store.Store, error) {
	if root == "" {
		return nil, fmt.Errorf("dir store: empty path")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("dir store: %w", err)
	}
	return &DirStore{root: root}, nil
}

func (d *DirStore) file(key string) (string, error) {
	if err := store.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(d.root, key+suffix), nil
}

func (d *DirStore) Get(ctx context.Context, key string) (val []byte, err error) {
	name, err := d.file(key)
	if err != nil {
		return nil, err
	}
	val, err = os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrKeyNotFound
	}
	return val, err
}

// Put writes through a temporary file so readers never see a partial value.
func (d *DirStore) Put(ctx context.Context, key string, val []byte) (err error) {
	name, err := d.file(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, "."+key+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(val); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func (d *DirStore) Del(ctx context.Context, key string) (deleted bool, err error) {
	name, err := d.file(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DirStore) List(ctx context.Context) (keys []string, err error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	keys = []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, suffix))
	}
	sort.Strings(keys)
	return keys, nil
}
