package ravendb

import (
	"strings"
	"testing"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/indexes"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/PixeeSandbox/ravendb/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rows under test: (id u64, email, notes)

type domainKey struct{}

func (domainKey) IndexKeyGenerator() {}

func (domainKey) GenerateKey(a arena.Arena, v *rows.View) (arena.Slice, error) {
	email := string(v.Field(1))
	domain := ""
	if at := strings.IndexByte(email, '@'); at >= 0 {
		domain = strings.ToLower(email[at+1:])
	}
	key := a.Allocate(len(domain))
	copy(key.Bytes(), domain)
	return key, nil
}

func init() {
	indexes.RegisterKeyGenerator("table_test", "domain", domainKey{})
}

// userSchema is rebuilt per open: computed definitions carry a set-once
// resize hook, so schema instances are not reused across opens.
func userSchema(t *testing.T) *schema.Schema {
	byDomain, err := indexes.NewComputedDef("by_domain", false, "table_test", "domain")
	require.NoError(t, err)
	s, err := schema.New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("by_email", false, 1, 1),
		byDomain,
		indexes.NewFixedSizeDef("by_id", false, 0),
	)
	require.NoError(t, err)
	return s
}

func userRow(id uint64, email, notes string) *rows.Builder {
	return rows.NewBuilder().AddUint64(id).AddString(email).AddString(notes)
}

func TestTableCreateReopenAndDrift(t *testing.T) {
	dir := t.TempDir()

	tab, err := Open(dir, userSchema(t), Options{})
	require.NoError(t, err)
	id := tab.Id()

	require.NoError(t, tab.Insert(userRow(1, "alice@wonder.land", "first")))
	require.NoError(t, tab.Insert(userRow(2, "bob@builder.dev", "second")))
	require.NoError(t, tab.Close())

	// same schema reopens and sees the data
	tab, err = Open(dir, userSchema(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, id, tab.Id())

	v, err := tab.Get(rows.Uint64Bytes(1))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, []byte("alice@wonder.land"), v.Field(1))
	require.NoError(t, tab.Close())

	// a drifted schema must refuse to open
	byDomain, err := indexes.NewComputedDef("by_domain", false, "table_test", "domain")
	require.NoError(t, err)
	drifted, err := schema.New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("by_email", false, 2, 1), // wrong field
		byDomain,
		indexes.NewFixedSizeDef("by_id", false, 0),
	)
	require.NoError(t, err)
	_, err = Open(dir, drifted, Options{})
	assert.ErrorIs(t, err, ravendb_errors.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "by_email")
}

func TestInsertDuplicate(t *testing.T) {
	tab, err := Open(t.TempDir(), userSchema(t), Options{})
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, tab.Insert(userRow(7, "x@y.z", "")))
	err = tab.Insert(userRow(7, "other@y.z", ""))
	assert.ErrorIs(t, err, ravendb_errors.ErrRowExists)
	assert.NoError(t, tab.Put(userRow(7, "other@y.z", "")))
}

func TestIndexLookups(t *testing.T) {
	tab, err := Open(t.TempDir(), userSchema(t), Options{})
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, tab.Insert(userRow(300, "carol@acme.io", "")))

	v, err := tab.GetByIndex("by_email", []byte("carol@acme.io"))
	require.NoError(t, err)
	require.NotNil(t, v)
	u, err := rows.Uint64Field(v.Field(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(300), u)

	v, err = tab.GetByIndex("by_domain", []byte("acme.io"))
	require.NoError(t, err)
	assert.NotNil(t, v)

	v, err = tab.GetByFixedKey("by_id", 300)
	require.NoError(t, err)
	assert.NotNil(t, v)

	v, err = tab.GetByIndex("by_email", []byte("nobody@acme.io"))
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = tab.GetByIndex("no_such_index", []byte("x"))
	assert.ErrorIs(t, err, ravendb_errors.ErrIndexUnknown)
}

func TestPutMovesIndexEntries(t *testing.T) {
	tab, err := Open(t.TempDir(), userSchema(t), Options{})
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, tab.Insert(userRow(5, "old@left.org", "")))
	require.NoError(t, tab.Put(userRow(5, "new@right.org", "")))

	v, err := tab.GetByIndex("by_email", []byte("old@left.org"))
	require.NoError(t, err)
	assert.Nil(t, v, "stale entry must be gone")
	v, err = tab.GetByIndex("by_email", []byte("new@right.org"))
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestDeleteRemovesEntries(t *testing.T) {
	tab, err := Open(t.TempDir(), userSchema(t), Options{})
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, tab.Insert(userRow(9, "gone@soon.net", "")))
	require.NoError(t, tab.Delete(rows.Uint64Bytes(9)))

	v, err := tab.Get(rows.Uint64Bytes(9))
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = tab.GetByIndex("by_email", []byte("gone@soon.net"))
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = tab.GetByFixedKey("by_id", 9)
	require.NoError(t, err)
	assert.Nil(t, v)

	// deleting twice is a no-op
	assert.NoError(t, tab.Delete(rows.Uint64Bytes(9)))
}

func TestFixedIndexScansInNumericOrder(t *testing.T) {
	tab, err := Open(t.TempDir(), userSchema(t), Options{})
	require.NoError(t, err)
	defer tab.Close()

	for _, id := range []uint64{10000000, 2, 300, 1 << 40} {
		require.NoError(t, tab.Insert(userRow(id, "n@o.p", "")))
	}

	seq, err := tab.SeekIndex("by_id", nil)
	require.NoError(t, err)
	got := []uint64{}
	for key, v := range seq {
		k, err := indexes.DecodeFixedKey(key)
		require.NoError(t, err)
		u, err := rows.Uint64Field(v.Field(0))
		require.NoError(t, err)
		assert.Equal(t, k, u)
		got = append(got, k)
	}
	assert.Equal(t, []uint64{2, 300, 10000000, 1 << 40}, got)
}

func TestSeekByPrefix(t *testing.T) {
	tab, err := Open(t.TempDir(), userSchema(t), Options{})
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, tab.Insert(userRow(1, "bob@a.com", "")))
	require.NoError(t, tab.Insert(userRow(2, "bobby@b.com", "")))
	require.NoError(t, tab.Insert(userRow(3, "carl@c.com", "")))

	seq, err := tab.SeekIndex("by_email", []byte("bob"))
	require.NoError(t, err)
	emails := []string{}
	for key := range seq {
		emails = append(emails, string(key))
	}
	assert.Equal(t, []string{"bob@a.com", "bobby@b.com"}, emails)
}

func TestEntrySizeAccounting(t *testing.T) {
	tab, err := Open(t.TempDir(), userSchema(t), Options{TrackEntrySizes: true})
	require.NoError(t, err)
	defer tab.Close()

	gauge := EntryBytes.WithLabelValues("by_domain")
	before := testutil.ToFloat64(gauge)

	require.NoError(t, tab.Insert(userRow(1, "a@b.c", "tiny")))
	afterInsert := testutil.ToFloat64(gauge)
	assert.Greater(t, afterInsert, before)

	require.NoError(t, tab.Put(userRow(1, "a@b.c", strings.Repeat("x", 500))))
	assert.Greater(t, testutil.ToFloat64(gauge), afterInsert)

	require.NoError(t, tab.Delete(rows.Uint64Bytes(1)))
	assert.InDelta(t, before, testutil.ToFloat64(gauge), 0.1)
}
