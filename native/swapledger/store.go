package swapledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
)

// Storage abstracts the key-value operations the ledger performs inside a
// single transaction. Values are RLP encoded by the implementation.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Store provides transactional access to Storage. Update must apply every
// write performed by fn atomically, or none of them when fn returns an error.
// View must reject writes.
type Store interface {
	View(ctx context.Context, fn func(Storage) error) error
	Update(ctx context.Context, fn func(Storage) error) error
}

// MemoryStore is an in-process Store. Updates are staged in a copy-on-write
// overlay and merged only when the callback succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	kv    map[string][]byte
	lists map[string][][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: make(map[string][]byte), lists: make(map[string][][]byte)}
}

// View runs fn against a read-only snapshot of the store.
func (m *MemoryStore) View(ctx context.Context, fn func(Storage) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryTxn{store: m, readOnly: true})
}

// Update runs fn against a staged overlay and commits it when fn succeeds.
func (m *MemoryStore) Update(ctx context.Context, fn func(Storage) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn := &memoryTxn{
		store:   m,
		puts:    make(map[string][]byte),
		appends: make(map[string][][]byte),
	}
	if err := fn(txn); err != nil {
		return err
	}
	for key, value := range txn.puts {
		m.kv[key] = value
	}
	for key, values := range txn.appends {
		m.lists[key] = append(m.lists[key], values...)
	}
	return nil
}

type memoryTxn struct {
	store    *MemoryStore
	readOnly bool
	puts     map[string][]byte
	appends  map[string][][]byte
}

func (t *memoryTxn) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := t.puts[string(key)]
	if !ok {
		encoded, ok = t.store.kv[string(key)]
	}
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (t *memoryTxn) KVPut(key []byte, value interface{}) error {
	if t.readOnly {
		return errReadOnly
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	t.puts[string(key)] = encoded
	return nil
}

func (t *memoryTxn) KVAppend(key []byte, value []byte) error {
	if t.readOnly {
		return errReadOnly
	}
	k := string(key)
	t.appends[k] = append(t.appends[k], append([]byte(nil), value...))
	return nil
}

func (t *memoryTxn) KVGetList(key []byte, out interface{}) error {
	k := string(key)
	combined := make([][]byte, 0, len(t.store.lists[k])+len(t.appends[k]))
	combined = append(combined, t.store.lists[k]...)
	combined = append(combined, t.appends[k]...)
	encoded, err := rlp.EncodeToBytes(combined)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(encoded, out)
}
