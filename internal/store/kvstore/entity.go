package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/booksy/booksy-server/internal/store"
)

// Entity provides generic CRUD over one JSON-encoded type stored under
// prefix. Primary keys are prefix + id, so iteration runs in id order.
type Entity[T any] struct {
	store   *Store
	name    string
	prefix  string
	unique  []index[T]
	grouped []index[T]
}

// index derives secondary keys from an entity. Unique indexes map one value
// to one id; grouped indexes map one value to many ids.
type index[T any] struct {
	name      string
	keyGen    func(*T) []string
	transform func(string) string
}

func newEntity[T any](s *Store, name string) *Entity[T] {
	return &Entity[T]{store: s, name: name, prefix: name + ":"}
}

// WithUnique adds a unique index. Writes that would reuse a value held by
// another entity fail with store.ErrAlreadyExists.
func (e *Entity[T]) WithUnique(name string, keyGen func(*T) []string, transform func(string) string) *Entity[T] {
	e.unique = append(e.unique, index[T]{name: name, keyGen: keyGen, transform: transform})
	return e
}

// WithGroup adds a non-unique index usable with ListBy.
func (e *Entity[T]) WithGroup(name string, keyGen func(*T) []string) *Entity[T] {
	e.grouped = append(e.grouped, index[T]{name: name, keyGen: keyGen})
	return e
}

func (e *Entity[T]) key(id string) []byte { return []byte(e.prefix + id) }

// Index keys live outside the entity prefix so scans never see them.
func (e *Entity[T]) uniqueKey(idx, value string) []byte {
	return []byte("u:" + e.name + ":" + idx + ":" + value)
}

func (e *Entity[T]) groupPrefix(idx, value string) string {
	return "g:" + e.name + ":" + idx + ":" + value + ":"
}

func (e *Entity[T]) groupKey(idx, value, id string) []byte {
	return []byte(e.groupPrefix(idx, value) + id)
}

// Create stores entity under id. It fails with store.ErrAlreadyExists when
// the id or a unique index value is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.name, err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(e.key(id))
		if err == nil {
			return store.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check %s key: %w", e.name, err)
		}
		if err := e.checkUnique(txn, entity, nil); err != nil {
			return err
		}
		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set %s: %w", e.name, err)
		}
		return e.setIndexes(txn, id, entity)
	})
}

// Get loads the entity stored under id or returns store.ErrNotFound.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entity *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = e.load(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// GetBy looks an entity up through a unique index.
func (e *Entity[T]) GetBy(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, idx := range e.unique {
		if idx.name == indexName && idx.transform != nil {
			value = idx.transform(value)
		}
	}

	var entity *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.uniqueKey(indexName, value))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		entity, err = e.load(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// ListBy returns every entity whose grouped index holds value, in id order.
func (e *Entity[T]) ListBy(ctx context.Context, indexName, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(e.groupPrefix(indexName, value))

	var out []*T
	err := e.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			entity, err := e.load(txn, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces the entity under id and moves its index entries. It
// returns store.ErrNotFound when nothing is stored under id.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.name, err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		old, err := e.load(txn, id)
		if err != nil {
			return err
		}
		if err := e.checkUnique(txn, entity, old); err != nil {
			return err
		}
		if err := e.deleteIndexes(txn, id, old); err != nil {
			return err
		}
		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set %s: %w", e.name, err)
		}
		return e.setIndexes(txn, id, entity)
	})
}

// Put creates or replaces the entity under id.
func (e *Entity[T]) Put(ctx context.Context, id string, entity *T) error {
	err := e.Update(ctx, id, entity)
	if errors.Is(err, store.ErrNotFound) {
		return e.Create(ctx, id, entity)
	}
	return err
}

// Delete removes the entity under id together with its index entries.
// Deleting a missing id is not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		old, err := e.load(txn, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := e.deleteIndexes(txn, id, old); err != nil {
			return err
		}
		return txn.Delete(e.key(id))
	})
}

// List iterates all entities in id order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return e.ListAfter(ctx, "")
}

// ListAfter iterates entities whose id sorts strictly after the given id.
func (e *Entity[T]) ListAfter(ctx context.Context, after string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix)
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			start := prefix
			if after != "" {
				start = e.key(after)
			}
			for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}
				if after != "" && string(it.Item().Key()) == e.prefix+after {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, fmt.Errorf("unmarshal %s: %w", e.name, err))
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

func (e *Entity[T]) load(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", e.name, err)
	}
	var entity T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", e.name, err)
	}
	return &entity, nil
}

// checkUnique fails if a unique value of entity is held by another entity.
// Values that old already owns are skipped.
func (e *Entity[T]) checkUnique(txn *badger.Txn, entity, old *T) error {
	for _, idx := range e.unique {
		owned := map[string]bool{}
		if old != nil {
			for _, v := range idx.keyGen(old) {
				owned[v] = true
			}
		}
		for _, v := range idx.keyGen(entity) {
			if v == "" || owned[v] {
				continue
			}
			_, err := txn.Get(e.uniqueKey(idx.name, v))
			if err == nil {
				return fmt.Errorf("%s %s %q: %w", e.name, idx.name, v, store.ErrAlreadyExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check %s index: %w", e.name, err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.unique {
		for _, v := range idx.keyGen(entity) {
			if v == "" {
				continue
			}
			if err := txn.Set(e.uniqueKey(idx.name, v), []byte(id)); err != nil {
				return fmt.Errorf("set %s index: %w", e.name, err)
			}
		}
	}
	for _, idx := range e.grouped {
		for _, v := range idx.keyGen(entity) {
			if err := txn.Set(e.groupKey(idx.name, v, id), nil); err != nil {
				return fmt.Errorf("set %s group: %w", e.name, err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.unique {
		for _, v := range idx.keyGen(entity) {
			if v == "" {
				continue
			}
			if err := txn.Delete(e.uniqueKey(idx.name, v)); err != nil {
				return fmt.Errorf("delete %s index: %w", e.name, err)
			}
		}
	}
	for _, idx := range e.grouped {
		for _, v := range idx.keyGen(entity) {
			if err := txn.Delete(e.groupKey(idx.name, v, id)); err != nil {
				return fmt.Errorf("delete %s group: %w", e.name, err)
			}
		}
	}
	return nil
}
