package schema

import (
	"strings"
	"testing"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/indexes"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lowerFirstField struct{}

func (lowerFirstField) IndexKeyGenerator() {}

func (lowerFirstField) GenerateKey(a arena.Arena, v *rows.View) (arena.Slice, error) {
	low := strings.ToLower(string(v.Field(0)))
	key := a.Allocate(len(low))
	copy(key.Bytes(), low)
	return key, nil
}

func init() {
	indexes.RegisterKeyGenerator("schema_test", "lower", lowerFirstField{})
}

func testSchema(t *testing.T) *Schema {
	computed, err := indexes.NewComputedDef("by_lower", false, "schema_test", "lower")
	require.NoError(t, err)
	s, err := New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("by_pair", false, 1, 2),
		computed,
		indexes.NewFixedSizeDef("by_num", false, 3),
	)
	require.NoError(t, err)
	return s
}

func TestUniqueNames(t *testing.T) {
	_, err := New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("dup", false, 1, 1),
		indexes.NewFixedSizeDef("dup", false, 2),
	)
	assert.ErrorIs(t, err, ravendb_errors.ErrDuplicateIndex)

	_, err = New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("pk", false, 1, 1),
	)
	assert.ErrorIs(t, err, ravendb_errors.ErrDuplicateIndex)
}

func TestInvalidDefinitionRejected(t *testing.T) {
	_, err := New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("", false, 1, 1),
	)
	assert.ErrorIs(t, err, ravendb_errors.ErrBadDefinition)
}

func TestSchemaSerdeRoundTrip(t *testing.T) {
	s := testSchema(t)
	id := uuid.New()

	backId, back, err := Deserialize(s.Serialize(id))
	require.NoError(t, err)
	assert.Equal(t, id, backId)
	assert.NoError(t, s.EnsureIdentical(back))

	// all kinds made it through with the right identity
	def, ok := back.Lookup("by_num")
	require.True(t, ok)
	assert.Equal(t, indexes.KindFixedSize, def.Kind())
	def, ok = back.Lookup("by_lower")
	require.True(t, ok)
	assert.Equal(t, indexes.KindComputed, def.Kind())
	_, ok = back.Lookup("nope")
	assert.False(t, ok)
}

func TestChecksumCatchesCorruption(t *testing.T) {
	data := testSchema(t).Serialize(uuid.New())

	for _, at := range []int{10, len(data) / 2, len(data) - 9} {
		mangled := append([]byte(nil), data...)
		mangled[at] ^= 0x40
		_, _, err := Deserialize(mangled)
		assert.Error(t, err, "flipped byte %d", at)
	}
}

func TestUnresolvableGeneratorFailsSchemaLoad(t *testing.T) {
	indexes.RegisterKeyGenerator("schema_test", "transient", lowerFirstField{})
	computed, err := indexes.NewComputedDef("by_transient", false, "schema_test", "transient")
	require.NoError(t, err)
	s, err := New(indexes.NewFieldRangeDef("pk", true, 0, 1), computed)
	require.NoError(t, err)
	data := s.Serialize(uuid.New())

	indexes.UnregisterKeyGenerator("schema_test", "transient")
	_, _, err = Deserialize(data)
	assert.ErrorIs(t, err, ravendb_errors.ErrGeneratorUnknown)
}

func TestEnsureIdenticalCatchesDrift(t *testing.T) {
	s := testSchema(t)
	_, persisted, err := Deserialize(s.Serialize(uuid.New()))
	require.NoError(t, err)

	assert.NoError(t, s.EnsureIdentical(persisted))

	// one renamed field range
	computed, err := indexes.NewComputedDef("by_lower", false, "schema_test", "lower")
	require.NoError(t, err)
	drifted, err := New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("by_pair", false, 2, 2), // start moved
		computed,
		indexes.NewFixedSizeDef("by_num", false, 3),
	)
	require.NoError(t, err)

	err = drifted.EnsureIdentical(persisted)
	assert.ErrorIs(t, err, ravendb_errors.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "by_pair")
	assert.Contains(t, err.Error(), "start index")

	// one index short
	shorter, err := New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("by_pair", false, 1, 2),
	)
	require.NoError(t, err)
	err = shorter.EnsureIdentical(persisted)
	assert.ErrorIs(t, err, ravendb_errors.ErrSchemaMismatch)

	// drifted primary
	badPk, err := New(indexes.NewFieldRangeDef("pk", true, 1, 1))
	require.NoError(t, err)
	onlyPk, err := New(indexes.NewFieldRangeDef("pk", true, 0, 1))
	require.NoError(t, err)
	_, persistedPk, err := Deserialize(onlyPk.Serialize(uuid.New()))
	require.NoError(t, err)
	err = badPk.EnsureIdentical(persistedPk)
	assert.ErrorIs(t, err, ravendb_errors.ErrSchemaMismatch)
}
