package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/comalice/fractalx"
)

const snapshotKeyPrefix = "snapshot/"

// BadgerPersister stores snapshots in a BadgerDB, one JSON value per module id.
type BadgerPersister struct {
	db    *badger.DB
	owned bool
}

// OpenBadgerPersister opens a BadgerDB at dir. An empty dir opens an
// in-memory database. The persister owns the database and closes it on Close.
func OpenBadgerPersister(dir string) (*BadgerPersister, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerPersister{db: db, owned: true}, nil
}

// NewBadgerPersister wraps an already open database. Close leaves it open.
func NewBadgerPersister(db *badger.DB) *BadgerPersister {
	return &BadgerPersister{db: db}
}

func snapshotKey(moduleID string) []byte {
	return []byte(snapshotKeyPrefix + moduleID)
}

func (p *BadgerPersister) Save(ctx context.Context, snapshot fractalx.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snapshot.ModuleID), data)
	})
}

func (p *BadgerPersister) Load(ctx context.Context, moduleID string) (fractalx.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return fractalx.Snapshot{}, err
	}
	var snapshot fractalx.Snapshot
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(moduleID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("module %q: %w", moduleID, os.ErrNotExist)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snapshot)
		})
	})
	if err != nil {
		return fractalx.Snapshot{}, err
	}
	snapshot.ModuleID = moduleID
	return snapshot, nil
}

// Modules lists the ids of every stored snapshot.
func (p *BadgerPersister) Modules() ([]string, error) {
	var ids []string
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapshotKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(snapshotKeyPrefix):]))
		}
		return nil
	})
	return ids, err
}

// Delete removes the snapshot of moduleID. Deleting a missing id is not an error.
func (p *BadgerPersister) Delete(moduleID string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(moduleID))
	})
}

// Close closes the database when the persister opened it.
func (p *BadgerPersister) Close() error {
	if !p.owned {
		return nil
	}
	return p.db.Close()
}
