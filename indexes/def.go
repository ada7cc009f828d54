package indexes

import (
	"fmt"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/prometheus/client_golang/prometheus"
)

var KeyExtractions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ravendb",
	Subsystem: "indexes",
	Name:      "key_extractions",
}, []string{"index", "kind"})

var KeyExtractionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ravendb",
	Subsystem: "indexes",
	Name:      "key_extraction_errors",
}, []string{"index", "kind", "reason"})

// Kind tags a definition variant. Persisted as a full int64 on purpose, so
// future kinds do not break the on-disk format.
type Kind int64

const (
	KindNone Kind = iota
	KindFieldRange
	KindComputed
	KindFixedSize
)

func (k Kind) String() string {
	switch k {
	case KindFieldRange:
		return "field-range"
	case KindComputed:
		return "computed"
	case KindFixedSize:
		return "fixed-size"
	}
	return fmt.Sprintf("kind(%d)", int64(k))
}

// Definition is one declarative index-key derivation rule. Implementations
// are immutable after construction and safe for concurrent use.
type Definition interface {
	Name() string
	Global() bool
	Kind() Kind

	// KeyFromView derives the index key from a materialized row.
	KeyFromView(a arena.Arena, v *rows.View) (arena.Slice, error)
	// KeyFromBuilder derives the same key from a not-yet-committed row.
	KeyFromBuilder(a arena.Arena, b *rows.Builder) (arena.Slice, error)

	// AppendDefinition serializes the definition into a packed-row builder.
	AppendDefinition(b *rows.Builder)
	// Validate performs self-validation of the definition's fields.
	Validate() error
	// EnsureIdentical compares field-by-field against another instance and
	// reports the first differing field with both values.
	EnsureIdentical(other Definition) error
}

// Serialize encodes a definition as a standalone packed row.
func Serialize(def Definition) []byte {
	b := rows.NewBuilder()
	def.AppendDefinition(b)
	return b.Seal()
}

// ReadDefinition decodes a kind-tagged definition record (field-range or
// computed). Fixed-size records carry no kind tag and go through
// ReadFixedSizeDef instead.
func ReadDefinition(data []byte) (Definition, error) {
	v, err := rows.NewView(data)
	if err != nil {
		return nil, err
	}
	if v.FieldCount() < 1 {
		return nil, fmt.Errorf("%w: empty definition record", ravendb_errors.ErrBadDefinition)
	}
	tag, err := rows.Int64Field(v.Field(0))
	if err != nil {
		return nil, err
	}
	switch Kind(tag) {
	case KindFieldRange:
		return readFieldRangeDef(v)
	case KindComputed:
		return readComputedDef(v)
	default:
		return nil, fmt.Errorf("%w: unknown kind tag %d", ravendb_errors.ErrBadDefinition, tag)
	}
}

func mismatch(index, field string, expected, actual any) error {
	return fmt.Errorf("%w: index %q: %s differs: %v vs %v",
		ravendb_errors.ErrSchemaMismatch, index, field, expected, actual)
}

// ensureSameHeader checks the fields every kind shares. Name goes first so
// later mismatches are reported against a known index.
func ensureSameHeader(expected, actual Definition) error {
	if expected.Name() != actual.Name() {
		return mismatch(expected.Name(), "name", expected.Name(), actual.Name())
	}
	if expected.Kind() != actual.Kind() {
		return mismatch(expected.Name(), "kind", expected.Kind(), actual.Kind())
	}
	if expected.Global() != actual.Global() {
		return mismatch(expected.Name(), "globality", expected.Global(), actual.Global())
	}
	return nil
}
