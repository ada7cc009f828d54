package indexes

import (
	"encoding/binary"
	"fmt"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
)

// FixedSizeDef indexes exactly one 64-bit integer taken from a single
// 8-byte row field. The stored key is the value byte-swapped to big-endian:
// the fixed-key tree orders by raw byte comparison, and the swap makes that
// match numeric order.
type FixedSizeDef struct {
	name   string
	global bool
	start  int
}

func NewFixedSizeDef(name string, global bool, start int) *FixedSizeDef {
	return &FixedSizeDef{name: name, global: global, start: start}
}

func (d *FixedSizeDef) Name() string    { return d.name }
func (d *FixedSizeDef) Global() bool    { return d.global }
func (d *FixedSizeDef) Kind() Kind      { return KindFixedSize }
func (d *FixedSizeDef) StartIndex() int { return d.start }

// EncodeFixedKey turns a value into its stored 8-byte big-endian form.
func EncodeFixedKey(v uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v)
}

// DecodeFixedKey reverses EncodeFixedKey.
func DecodeFixedKey(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("%w: stored key is %d bytes", ravendb_errors.ErrFixedKeySize, len(key))
	}
	return binary.BigEndian.Uint64(key), nil
}

func (d *FixedSizeDef) KeyFromView(a arena.Arena, v *rows.View) (arena.Slice, error) {
	return d.key(a, v)
}

func (d *FixedSizeDef) KeyFromBuilder(a arena.Arena, b *rows.Builder) (arena.Slice, error) {
	return d.key(a, b)
}

func (d *FixedSizeDef) key(a arena.Arena, r rows.Row) (arena.Slice, error) {
	f := r.Field(d.start)
	if len(f) != 8 {
		KeyExtractionErrors.WithLabelValues(d.name, d.Kind().String(), "field_size").Inc()
		return arena.Slice{}, fmt.Errorf("%w: index %q: field %d is %d bytes",
			ravendb_errors.ErrFixedKeySize, d.name, d.start, len(f))
	}
	key := a.Allocate(8)
	binary.BigEndian.PutUint64(key.Bytes(), binary.LittleEndian.Uint64(f))
	KeyExtractions.WithLabelValues(d.name, d.Kind().String()).Inc()
	return key, nil
}

// AppendDefinition writes start(i32), global(bool), name — no kind tag; the
// schema container frames fixed-size records distinctly.
func (d *FixedSizeDef) AppendDefinition(b *rows.Builder) {
	b.AddInt32(int32(d.start)).
		AddBool(d.global).
		AddString(d.name)
}

// ReadFixedSizeDef decodes a fixed-size definition record.
func ReadFixedSizeDef(data []byte) (*FixedSizeDef, error) {
	v, err := rows.NewView(data)
	if err != nil {
		return nil, err
	}
	if v.FieldCount() != 3 {
		return nil, fmt.Errorf("%w: fixed-size record has %d fields",
			ravendb_errors.ErrBadDefinition, v.FieldCount())
	}
	start, err := rows.Int32Field(v.Field(0))
	if err != nil {
		return nil, err
	}
	global, err := rows.BoolField(v.Field(1))
	if err != nil {
		return nil, err
	}
	d := NewFixedSizeDef(string(v.Field(2)), global, int(start))
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FixedSizeDef) Validate() error {
	if len(d.name) == 0 {
		return fmt.Errorf("%w: empty name", ravendb_errors.ErrBadDefinition)
	}
	if d.start < 0 {
		return fmt.Errorf("%w: index %q: negative start index %d",
			ravendb_errors.ErrBadDefinition, d.name, d.start)
	}
	return nil
}

func (d *FixedSizeDef) EnsureIdentical(other Definition) error {
	if err := ensureSameHeader(d, other); err != nil {
		return err
	}
	o, ok := other.(*FixedSizeDef)
	if !ok {
		return mismatch(d.name, "kind", d.Kind(), other.Kind())
	}
	if d.start != o.start {
		return mismatch(d.name, "start index", d.start, o.start)
	}
	return nil
}
