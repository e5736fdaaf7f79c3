// Package storage persists knowledge-base snapshots in BadgerDB.
//
// A snapshot is written as one keyspace generation: statements and
// negative examples under index-ordered keys, attribute bags as JSON,
// and a manifest carrying counts plus a BLAKE2b digest of the
// statement stream. Load verifies the digest before handing the
// snapshot back.
//
// Key Structure:
//   - Manifest:   0x01 -> JSON(Manifest)
//   - Statements: 0x02 + uint32(index) -> statement text
//   - Negatives:  0x03 + uint32(index) -> statement text
//   - Entities:   0x04 + uint32(index) -> JSON(SnapshotEntity)
//   - Relations:  0x05 + uint32(index) -> JSON(SnapshotRelation)
//
// Example:
//
//	store, err := storage.Open(storage.Options{DataDir: "./data"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Save(ctx, kb.Export()); err != nil {
//		log.Fatal(err)
//	}
package storage

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/orneryd/munindb/pkg/munindb"
)

// Single-byte key prefixes.
const (
	prefixManifest  = byte(0x01)
	prefixStatement = byte(0x02)
	prefixNegative  = byte(0x03)
	prefixEntity    = byte(0x04)
	prefixRelation  = byte(0x05)
)

var (
	// ErrNoSnapshot reports a load from a store that holds nothing.
	ErrNoSnapshot = errors.New("no snapshot stored")

	// ErrCorrupted reports a snapshot whose statement stream does not
	// match its manifest digest.
	ErrCorrupted = errors.New("snapshot corrupted")
)

// Manifest describes a stored snapshot.
type Manifest struct {
	Version          int       `json:"version"`
	RecursionLimit   int       `json:"recursion_limit"`
	PropagationLimit int       `json:"propagation_limit"`
	Statements       int       `json:"statements"`
	Negatives        int       `json:"negatives"`
	Entities         int       `json:"entities"`
	Relations        int       `json:"relations"`
	Digest           string    `json:"digest"`
	SavedAt          time.Time `json:"saved_at"`
}

const manifestVersion = 1

// Options configures the snapshot store.
type Options struct {
	// DataDir is the directory for data files. Required unless
	// InMemory is set.
	DataDir string

	// InMemory keeps everything in RAM; for tests.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Logger receives store diagnostics. Defaults to a nop logger.
	Logger *zap.Logger
}

// Store is a BadgerDB-backed snapshot store. Safe for concurrent use;
// Save replaces the previous snapshot wholesale.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens or creates the store.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bopts := badger.DefaultOptions(opts.DataDir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", opts.DataDir, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save writes the snapshot, replacing any previous one. The manifest,
// digest included, commits with the data.
func (s *Store) Save(ctx context.Context, snap *munindb.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, stmt := range snap.Statements {
		if err := wb.Set(indexKey(prefixStatement, i), []byte(stmt)); err != nil {
			return err
		}
	}
	for i, neg := range snap.Negatives {
		if err := wb.Set(indexKey(prefixNegative, i), []byte(neg)); err != nil {
			return err
		}
	}
	for i, ent := range snap.Entities {
		data, err := json.Marshal(ent)
		if err != nil {
			return fmt.Errorf("marshal entity %q: %w", ent.Name, err)
		}
		if err := wb.Set(indexKey(prefixEntity, i), data); err != nil {
			return err
		}
	}
	for i, rel := range snap.Relations {
		data, err := json.Marshal(rel)
		if err != nil {
			return fmt.Errorf("marshal relation %d: %w", i, err)
		}
		if err := wb.Set(indexKey(prefixRelation, i), data); err != nil {
			return err
		}
	}

	manifest := Manifest{
		Version:          manifestVersion,
		RecursionLimit:   snap.RecursionLimit,
		PropagationLimit: snap.PropagationLimit,
		Statements:       len(snap.Statements),
		Negatives:        len(snap.Negatives),
		Entities:         len(snap.Entities),
		Relations:        len(snap.Relations),
		Digest:           digest(snap),
		SavedAt:          time.Now().UTC(),
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := wb.Set([]byte{prefixManifest}, data); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	s.logger.Info("snapshot saved",
		zap.Int("statements", manifest.Statements),
		zap.Int("entities", manifest.Entities))
	return nil
}

// Load reads the stored snapshot and verifies its digest.
func (s *Store) Load(ctx context.Context) (*munindb.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	manifest, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	snap := &munindb.Snapshot{
		RecursionLimit:   manifest.RecursionLimit,
		PropagationLimit: manifest.PropagationLimit,
	}
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		snap.Statements, err = readStrings(txn, prefixStatement)
		if err != nil {
			return err
		}
		snap.Negatives, err = readStrings(txn, prefixNegative)
		if err != nil {
			return err
		}
		if err := readJSON(txn, prefixEntity, &snap.Entities); err != nil {
			return err
		}
		return readJSON(txn, prefixRelation, &snap.Relations)
	})
	if err != nil {
		return nil, err
	}
	if digest(snap) != manifest.Digest {
		return nil, ErrCorrupted
	}
	return snap, nil
}

// Manifest reads the stored manifest without loading the snapshot.
func (s *Store) Manifest() (*Manifest, error) {
	var manifest Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte{prefixManifest})
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoSnapshot
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &manifest)
		})
	})
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

func indexKey(prefix byte, i int) []byte {
	key := make([]byte, 5)
	key[0] = prefix
	binary.BigEndian.PutUint32(key[1:], uint32(i))
	return key
}

func readStrings(txn *badger.Txn, prefix byte) ([]string, error) {
	var out []string
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{prefix}
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			out = append(out, string(val))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readJSON[T any](txn *badger.Txn, prefix byte, dst *[]T) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{prefix}
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var rec T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
		if err != nil {
			return err
		}
		*dst = append(*dst, rec)
	}
	return nil
}

// digest hashes the statement and negative streams; attribute bags are
// not covered, the statements are what reconstruct the rule base.
func digest(snap *munindb.Snapshot) string {
	h, _ := blake2b.New256(nil)
	for _, stmt := range snap.Statements {
		h.Write([]byte(stmt))
		h.Write([]byte{'\n'})
	}
	h.Write([]byte{0})
	for _, neg := range snap.Negatives {
		h.Write([]byte(neg))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
