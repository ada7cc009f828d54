/*
Package ravendb is an embedded table layer over an ordered key-value store.
Rows are packed binary records (package rows); secondary-index keys are
derived from them declaratively (package indexes); the full index set is
persisted and re-validated on every open (package schema).

# Key layout in Pebble

  - Schema record: "S" -> checksummed schema bytes
  - Rows:          "O" + primary_key -> packed row
  - Variable-key index entries: "IV" + ordinal(u32, BE) + index_key -> primary_key
  - Fixed-key index entries:    "IX" + ordinal(u32, BE) + key(u64, BE) -> primary_key

Fixed-size keys live under their own prefix with a rigid 8-byte layout; the
storage layer treats that keyspace as a structurally distinct tree.

# Write path

Index entries are written in the same Pebble batch as the row. A write either
commits row+entries together or not at all, so indexes never contradict
committed rows. Keys for a not-yet-committed row are derived from the Builder;
cleanup keys for the row being replaced are derived from its View. Both paths
share the same addressing contract, so a definition cannot tell them apart.
*/
package ravendb

import (
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/indexes"
	"github.com/PixeeSandbox/ravendb/schema"
	"github.com/PixeeSandbox/ravendb/utils"
	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var EntryBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ravendb",
	Subsystem: "table",
	Name:      "index_entry_bytes",
}, []string{"index"})

var RowWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ravendb",
	Subsystem: "table",
	Name:      "row_writes",
}, []string{"op"})

type Options struct {
	Logger       utils.Logger
	Arena        arena.Arena
	RowCacheSize int
	Sync         bool
	// TrackEntrySizes re-attaches the entry-resize hook on every computed
	// definition at open time and feeds the EntryBytes gauge. Hooks are never
	// persisted, so this must happen after each reload.
	TrackEntrySizes bool
	// Metrics, when set, gets the per-table storage collector registered.
	Metrics prometheus.Registerer
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if o.Arena == nil {
		o.Arena = arena.NewPool()
	}
	if o.RowCacheSize == 0 {
		o.RowCacheSize = 10000
	}
}

type Table struct {
	db  *pebble.DB
	dir string
	id  uuid.UUID
	sch *schema.Schema

	ar   arena.Arena
	log  utils.Logger
	opts Options

	rowCache *lru.Cache[string, []byte]

	lock   sync.Mutex
	closed bool
}

var schemaKey = []byte{'S'}

func rowKey(pk []byte) []byte {
	return append([]byte{'O'}, pk...)
}

// entryKey builds an index-entry key. Fixed-size definitions get the "IX"
// prefix, everything else "IV".
func entryKey(def indexes.Definition, ordinal uint32, key []byte) []byte {
	prefix := byte('V')
	if def.Kind() == indexes.KindFixedSize {
		prefix = 'X'
	}
	ek := append([]byte{'I', prefix}, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(ek[2:6], ordinal)
	return append(ek, key...)
}

// Open opens (or creates) a table directory and validates the supplied
// schema against the persisted one. A first open persists the schema under a
// fresh table id; any later open that finds a drifted definition fails.
func Open(dir string, sch *schema.Schema, opts Options) (*Table, error) {
	opts.SetDefaults()
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "table open")
	}
	t := &Table{
		db:   db,
		dir:  dir,
		sch:  sch,
		ar:   opts.Arena,
		log:  opts.Logger,
		opts: opts,
	}
	t.rowCache, _ = lru.New[string, []byte](opts.RowCacheSize)

	persisted, closer, err := db.Get(schemaKey)
	switch err {
	case pebble.ErrNotFound:
		t.id = uuid.New()
		err = db.Set(schemaKey, sch.Serialize(t.id), &pebble.WriteOptions{Sync: true})
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "persisting schema")
		}
		t.log.Info("table created", "dir", dir, "id", t.id.String())
	case nil:
		id, stored, err := schema.Deserialize(persisted)
		_ = closer.Close()
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "reading persisted schema")
		}
		if err = sch.EnsureIdentical(stored); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "schema drift")
		}
		t.id = id
		t.log.Info("table opened", "dir", dir, "id", t.id.String())
	default:
		_ = db.Close()
		return nil, errors.Wrap(err, "reading persisted schema")
	}

	t.log = t.log.WithArgs("table", t.id.String())

	if opts.TrackEntrySizes {
		for _, def := range sch.Secondary() {
			if cd, ok := def.(*indexes.ComputedDef); ok {
				gauge := EntryBytes.WithLabelValues(cd.Name())
				cd.SetEntryResizeHook(func(oldSize, newSize int) {
					gauge.Add(float64(newSize - oldSize))
				})
			}
		}
	}
	if opts.Metrics != nil {
		if err := opts.Metrics.Register(NewStorageCollector(db)); err != nil {
			t.log.Warn("storage collector not registered", "err", err)
		}
	}
	return t, nil
}

func (t *Table) Id() uuid.UUID          { return t.id }
func (t *Table) Schema() *schema.Schema { return t.sch }

func (t *Table) writeOptions() *pebble.WriteOptions {
	return &pebble.WriteOptions{Sync: t.opts.Sync}
}

func (t *Table) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.rowCache.Purge()
	return t.db.Close()
}
