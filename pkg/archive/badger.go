// Package archive provides durable snapshot storage backed by BadgerDB,
// plus Parquet export for offline analysis of archived graphs.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/types"
)

// Key layout:
//
//	snap:<id>                                  full snapshot JSON
//	idx:<tenant>|<project>:<revNano>:<id>      list index, newest first
//
// revNano is math.MaxInt64 minus the creation time so a forward key scan
// yields snapshots in reverse chronological order.
const (
	snapPrefix = "snap:"
	idxPrefix  = "idx:"
)

// BadgerArchive persists graph snapshots in an embedded BadgerDB.
type BadgerArchive struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates a Badger archive at path.
func Open(path string, logger *slog.Logger) (*BadgerArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot archive: %w", err)
	}
	return &BadgerArchive{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (a *BadgerArchive) Close() error {
	return a.db.Close()
}

// Put archives a snapshot.
func (a *BadgerArchive) Put(_ context.Context, snapshot *types.GraphSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", snapshot.ID, err)
	}
	return a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(snapPrefix+snapshot.ID), payload); err != nil {
			return err
		}
		return txn.Set(indexKey(snapshot), nil)
	})
}

// Get loads a snapshot by id. Returns graph.ErrSnapshotNotFound when absent.
func (a *BadgerArchive) Get(_ context.Context, snapshotID string) (*types.GraphSnapshot, error) {
	var snap types.GraphSnapshot
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapPrefix + snapshotID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, graph.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", snapshotID, err)
	}
	return &snap, nil
}

// List returns up to limit snapshots for a partition, newest first.
func (a *BadgerArchive) List(ctx context.Context, tenantID, projectID string, limit int) ([]*types.GraphSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	prefix := []byte(fmt.Sprintf("%s%s|%s:", idxPrefix, tenantID, projectID))

	var ids []string
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid() && len(ids) < limit; it.Next() {
			key := string(it.Item().Key())
			// Snapshot id follows the last colon.
			if i := strings.LastIndexByte(key, ':'); i >= 0 {
				ids = append(ids, key[i+1:])
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	snaps := make([]*types.GraphSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := a.Get(ctx, id)
		if err != nil {
			if errors.Is(err, graph.ErrSnapshotNotFound) {
				a.logger.Warn("snapshot index entry without payload", "snapshot_id", id)
				continue
			}
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func indexKey(snapshot *types.GraphSnapshot) []byte {
	rev := int64(^uint64(0)>>1) - snapshot.CreatedAt.UnixNano()
	return []byte(fmt.Sprintf("%s%s|%s:%020d:%s",
		idxPrefix, snapshot.TenantID, snapshot.ProjectID, rev, snapshot.ID))
}
