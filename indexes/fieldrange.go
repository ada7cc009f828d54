package indexes

import (
	"fmt"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
)

// FieldRangeDef indexes the concatenation of `count` consecutive row fields
// starting at `start`. This is the default index kind; the primary key of
// every table is a field-range definition as well.
type FieldRangeDef struct {
	name   string
	global bool
	start  int
	count  int
}

func NewFieldRangeDef(name string, global bool, start, count int) *FieldRangeDef {
	return &FieldRangeDef{name: name, global: global, start: start, count: count}
}

func (d *FieldRangeDef) Name() string    { return d.name }
func (d *FieldRangeDef) Global() bool    { return d.global }
func (d *FieldRangeDef) Kind() Kind      { return KindFieldRange }
func (d *FieldRangeDef) StartIndex() int { return d.start }
func (d *FieldRangeDef) SpanCount() int  { return d.count }

func (d *FieldRangeDef) KeyFromView(a arena.Arena, v *rows.View) (arena.Slice, error) {
	return d.key(a, v)
}

func (d *FieldRangeDef) KeyFromBuilder(a arena.Arena, b *rows.Builder) (arena.Slice, error) {
	return d.key(a, b)
}

// key works against either row form; the addressing contract is identical.
func (d *FieldRangeDef) key(a arena.Arena, r rows.Row) (arena.Slice, error) {
	if d.count == 1 {
		f := r.Field(d.start)
		if len(f) > rows.MaxKeyLen {
			KeyExtractionErrors.WithLabelValues(d.name, d.Kind().String(), "too_large").Inc()
			return arena.Slice{}, fmt.Errorf("%w: index %q: field %d is %d bytes",
				ravendb_errors.ErrKeyTooLarge, d.name, d.start, len(f))
		}
		KeyExtractions.WithLabelValues(d.name, d.Kind().String()).Inc()
		return arena.Borrowed(f), nil
	}

	total := 0
	for i := 0; i < d.count; i++ {
		n := len(r.Field(d.start + i))
		// always-on, even though a Go slice cannot go negative: lengths here
		// mirror what the on-disk headers said
		if n < 0 {
			KeyExtractionErrors.WithLabelValues(d.name, d.Kind().String(), "negative_len").Inc()
			return arena.Slice{}, fmt.Errorf("%w: index %q: field %d",
				ravendb_errors.ErrNegativeFieldLen, d.name, d.start+i)
		}
		total += n
		if total > rows.MaxKeyLen {
			KeyExtractionErrors.WithLabelValues(d.name, d.Kind().String(), "too_large").Inc()
			return arena.Slice{}, fmt.Errorf("%w: index %q: %d bytes after field %d",
				ravendb_errors.ErrKeyTooLarge, d.name, total, d.start+i)
		}
	}

	key := a.Allocate(total)
	at := 0
	for i := 0; i < d.count; i++ {
		f := r.Field(d.start + i)
		if at+len(f) > total { // a field changed size between the two passes
			key.Release()
			KeyExtractionErrors.WithLabelValues(d.name, d.Kind().String(), "length_drift").Inc()
			return arena.Slice{}, fmt.Errorf("%w: index %q: field %d grew during extraction",
				ravendb_errors.ErrBadRowFormat, d.name, d.start+i)
		}
		at += copy(key.Bytes()[at:], f)
	}
	KeyExtractions.WithLabelValues(d.name, d.Kind().String()).Inc()
	return key, nil
}

func (d *FieldRangeDef) AppendDefinition(b *rows.Builder) {
	b.AddInt64(int64(KindFieldRange)).
		AddInt32(int32(d.start)).
		AddInt32(int32(d.count)).
		AddBool(d.global).
		AddString(d.name)
}

func readFieldRangeDef(v *rows.View) (*FieldRangeDef, error) {
	if v.FieldCount() != 5 {
		return nil, fmt.Errorf("%w: field-range record has %d fields",
			ravendb_errors.ErrBadDefinition, v.FieldCount())
	}
	start, err := rows.Int32Field(v.Field(1))
	if err != nil {
		return nil, err
	}
	count, err := rows.Int32Field(v.Field(2))
	if err != nil {
		return nil, err
	}
	global, err := rows.BoolField(v.Field(3))
	if err != nil {
		return nil, err
	}
	d := NewFieldRangeDef(string(v.Field(4)), global, int(start), int(count))
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FieldRangeDef) Validate() error {
	if len(d.name) == 0 {
		return fmt.Errorf("%w: empty name", ravendb_errors.ErrBadDefinition)
	}
	if d.start < 0 {
		return fmt.Errorf("%w: index %q: negative start index %d",
			ravendb_errors.ErrBadDefinition, d.name, d.start)
	}
	if d.count < 1 {
		return fmt.Errorf("%w: index %q: span of %d fields",
			ravendb_errors.ErrBadDefinition, d.name, d.count)
	}
	return nil
}

func (d *FieldRangeDef) EnsureIdentical(other Definition) error {
	if err := ensureSameHeader(d, other); err != nil {
		return err
	}
	o, ok := other.(*FieldRangeDef)
	if !ok {
		return mismatch(d.name, "kind", d.Kind(), other.Kind())
	}
	if d.start != o.start {
		return mismatch(d.name, "start index", d.start, o.start)
	}
	if d.count != o.count {
		return mismatch(d.name, "field count", d.count, o.count)
	}
	return nil
}
