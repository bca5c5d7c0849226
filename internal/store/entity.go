package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic CRUD for one domain type stored as JSON under a
// key prefix, with optional secondary indexes maintained in the same
// transaction as the record.
//
// Key layout:
//
//	<prefix><id>                          record
//	<prefix>idx:<name>:<value>            unique index, value is the id
//	<prefix>set:<name>:<value>:<id>       non-unique index, empty value
type Entity[T any] struct {
	store   *Store
	prefix  string
	idOf    func(*T) string
	unique  []Index[T]
	members []Index[T]
}

// Index defines a secondary index on an entity.
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewEntity creates an entity stored under prefix. idOf extracts the primary
// key from a record.
func NewEntity[T any](s *Store, prefix string, idOf func(*T) string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix, idOf: idOf}
}

// WithUniqueIndex adds an index whose values may belong to one record only.
// Writes that would reuse a value return ErrAlreadyExists.
func (e *Entity[T]) WithUniqueIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.unique = append(e.unique, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithSetIndex adds an index where many records may share a value.
func (e *Entity[T]) WithSetIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.members = append(e.members, Index[T]{name: name, keyGen: keyGen})
	return e
}

func (e *Entity[T]) recordKey(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) uniqueKey(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value)
}

func (e *Entity[T]) setPrefix(name, value string) []byte {
	return []byte(e.prefix + "set:" + name + ":" + value + ":")
}

// Create stores a new record. Returns ErrAlreadyExists on id or unique
// index conflicts.
func (e *Entity[T]) Create(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		return e.createTxn(txn, entity)
	})
}

func (e *Entity[T]) createTxn(txn *badger.Txn, entity *T) error {
	id := e.idOf(entity)
	if _, err := txn.Get(e.recordKey(id)); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to check existing key: %w", err)
	}
	return e.putTxn(txn, nil, entity)
}

// Get retrieves a record by id. Returns ErrNotFound if absent.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = e.getTxn(txn, id)
		return err
	})
	return out, err
}

func (e *Entity[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var entity T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &entity, nil
}

// getManyTxn loads ids, silently skipping missing ones.
func (e *Entity[T]) getManyTxn(txn *badger.Txn, ids []string) ([]*T, error) {
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		entity, err := e.getTxn(txn, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// GetByIndex resolves a unique index value to its record.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.uniqueKey(indexName, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out, err = e.getTxn(txn, string(id))
		return err
	})
	return out, err
}

// ListByIndex returns every record sharing value in a set index.
func (e *Entity[T]) ListByIndex(ctx context.Context, indexName, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = e.listByIndexTxn(txn, indexName, value)
		return err
	})
	return out, err
}

func (e *Entity[T]) listByIndexTxn(txn *badger.Txn, indexName, value string) ([]*T, error) {
	prefix := e.setPrefix(indexName, value)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		id := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
		// Ids never contain ':'; a match here belongs to a longer value.
		if strings.Contains(id, ":") {
			continue
		}
		ids = append(ids, id)
	}
	return e.getManyTxn(txn, ids)
}

// Update replaces an existing record and moves its index entries.
// Returns ErrNotFound if absent.
func (e *Entity[T]) Update(ctx context.Context, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		return e.updateTxn(txn, entity)
	})
}

func (e *Entity[T]) updateTxn(txn *badger.Txn, entity *T) error {
	old, err := e.getTxn(txn, e.idOf(entity))
	if err != nil {
		return err
	}
	return e.putTxn(txn, old, entity)
}

// putTxn writes entity and reconciles index entries against old, which is
// nil for a new record.
func (e *Entity[T]) putTxn(txn *badger.Txn, old, entity *T) error {
	id := e.idOf(entity)

	for _, idx := range e.unique {
		oldKeys := keySet(idx, old)
		for _, value := range idx.keyGen(entity) {
			if _, reused := oldKeys[value]; reused {
				delete(oldKeys, value)
				continue
			}
			key := e.uniqueKey(idx.name, value)
			if _, err := txn.Get(key); err == nil {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, value, ErrAlreadyExists)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
			if err := txn.Set(key, []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
		for stale := range oldKeys {
			if err := txn.Delete(e.uniqueKey(idx.name, stale)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}

	for _, idx := range e.members {
		oldKeys := keySet(idx, old)
		for _, value := range idx.keyGen(entity) {
			if _, reused := oldKeys[value]; reused {
				delete(oldKeys, value)
				continue
			}
			if err := txn.Set(append(e.setPrefix(idx.name, value), id...), nil); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
		for stale := range oldKeys {
			if err := txn.Delete(append(e.setPrefix(idx.name, stale), id...)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := txn.Set(e.recordKey(id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete removes a record and its index entries. Deleting a missing record
// is not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		return e.deleteTxn(txn, id)
	})
}

func (e *Entity[T]) deleteTxn(txn *badger.Txn, id string) error {
	old, err := e.getTxn(txn, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, idx := range e.unique {
		for _, value := range idx.keyGen(old) {
			if err := txn.Delete(e.uniqueKey(idx.name, value)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	for _, idx := range e.members {
		for _, value := range idx.keyGen(old) {
			if err := txn.Delete(append(e.setPrefix(idx.name, value), id...)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return txn.Delete(e.recordKey(id))
}

// List iterates over every record of this entity.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			prefix := []byte(e.prefix)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				rest := string(it.Item().Key()[len(prefix):])
				if strings.HasPrefix(rest, "idx:") || strings.HasPrefix(rest, "set:") {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

func keySet[T any](idx Index[T], entity *T) map[string]struct{} {
	out := make(map[string]struct{})
	if entity == nil {
		return out
	}
	for _, v := range idx.keyGen(entity) {
		out[v] = struct{}{}
	}
	return out
}
