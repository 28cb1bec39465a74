package memory

import (
	"context"
	"sort"

	"go.miragespace.co/bundlecfg/store"

	"github.com/puzpuzpuz/xsync/v2"
)

type MemoryStore struct {
	store *xsync.MapOf[string, []byte]
}

var _ store.Store = (*MemoryStore)(nil)

func init() {
	store.Register("memory", NewMemoryStore)
}

func NewMemoryStore(string) (store.Store, error) {
	return &MemoryStore{
		store: xsync.NewMapOf[[]byte](),
	}, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (val []byte, err error) {
	v, ok := m.store.Load(key)
	if !ok {
		return nil, store.ErrKeyNotFound
	}

	return v, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, val []byte) (err error) {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	m.store.Store(key, val)
	return nil
}

func (m *MemoryStore) Del(ctx context.Context, key string) (deleted bool, err error) {
	_, deleted = m.store.LoadAndDelete(key)
	return
}

func (m *MemoryStore) List(ctx context.Context) (keys []string, err error) {
	keys = make([]string, 0, m.store.Size())
	m.store.Range(func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys, nil
}
