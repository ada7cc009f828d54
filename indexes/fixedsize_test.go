package indexes

import (
	"bytes"
	"testing"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestFixedKeyRoundTrip(t *testing.T) {
	enc := EncodeFixedKey(300)
	back, err := DecodeFixedKey(enc)
	assert.NoError(t, err)
	assert.Equal(t, uint64(300), back)

	_, err = DecodeFixedKey(enc[:5])
	assert.ErrorIs(t, err, ravendb_errors.ErrFixedKeySize)
}

func TestFixedKeyExtraction(t *testing.T) {
	a := arena.NewPool()
	b, v := testRow(t, rows.Uint64Bytes(300), []byte("payload"))
	d := NewFixedSizeDef("by_num", false, 0)

	key, err := d.KeyFromView(a, v)
	assert.NoError(t, err)
	assert.Equal(t, EncodeFixedKey(300), key.Bytes())
	key.Release()

	key2, err := d.KeyFromBuilder(a, b)
	assert.NoError(t, err)
	assert.Equal(t, EncodeFixedKey(300), key2.Bytes())
	key2.Release()
}

func TestFixedKeyWrongFieldSize(t *testing.T) {
	a := arena.NewPool()
	_, v := testRow(t, []byte("short"), []byte("payload"))
	d := NewFixedSizeDef("by_num", false, 0)

	_, err := d.KeyFromView(a, v)
	assert.ErrorIs(t, err, ravendb_errors.ErrFixedKeySize)
}

func TestFixedKeyOrderMatchesNumericOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("encoded keys sort like their values", prop.ForAll(
		func(a, b uint64) bool {
			if a == b {
				return bytes.Equal(EncodeFixedKey(a), EncodeFixedKey(b))
			}
			if a > b {
				a, b = b, a
			}
			return bytes.Compare(EncodeFixedKey(a), EncodeFixedKey(b)) < 0
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestFixedSizeSerde(t *testing.T) {
	d := NewFixedSizeDef("by_num", true, 4)
	back, err := ReadFixedSizeDef(Serialize(d))
	assert.NoError(t, err)
	assert.NoError(t, d.EnsureIdentical(back))

	// fixed-size records carry no kind tag, so the tagged reader must not
	// accept them
	_, err = ReadDefinition(Serialize(d))
	assert.Error(t, err)
}

func TestFixedSizeEnsureIdentical(t *testing.T) {
	base := func() *FixedSizeDef { return NewFixedSizeDef("idx", false, 2) }

	err := base().EnsureIdentical(NewFixedSizeDef("idx", false, 3))
	assert.ErrorIs(t, err, ravendb_errors.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "start index")

	err = base().EnsureIdentical(NewFixedSizeDef("idx", true, 2))
	assert.Contains(t, err.Error(), "globality")

	assert.NoError(t, base().EnsureIdentical(base()))
}

func TestFixedSizeValidate(t *testing.T) {
	assert.ErrorIs(t, NewFixedSizeDef("", false, 0).Validate(), ravendb_errors.ErrBadDefinition)
	assert.ErrorIs(t, NewFixedSizeDef("x", false, -2).Validate(), ravendb_errors.ErrBadDefinition)
	assert.NoError(t, NewFixedSizeDef("x", false, 0).Validate())
}
