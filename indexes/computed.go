package indexes

import (
	"fmt"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
)

// ComputedDef indexes the output of a registered KeyGenerator. It exists for
// keys that are not a contiguous field projection: normalization, composite
// business rules, bucketing.
//
// Only the symbolic (scope, name) reference is persisted; the generator is
// re-resolved on reload. The entry-resize hook is NOT persisted either — the
// caller must re-attach it after every schema reload, or size notifications
// are silently gone.
type ComputedDef struct {
	name    string
	global  bool
	scope   string
	genName string
	gen     KeyGenerator

	// set once at construction time, afterwards only invoked
	onEntryResize func(oldSize, newSize int)
}

// NewComputedDef resolves (scope, genName) against the registry immediately;
// an in-code definition with a dangling reference is as fatal as a persisted
// one.
func NewComputedDef(name string, global bool, scope, genName string) (*ComputedDef, error) {
	gen, err := ResolveKeyGenerator(scope, genName)
	if err != nil {
		return nil, err
	}
	return &ComputedDef{
		name:    name,
		global:  global,
		scope:   scope,
		genName: genName,
		gen:     gen,
	}, nil
}

func (d *ComputedDef) Name() string           { return d.name }
func (d *ComputedDef) Global() bool           { return d.global }
func (d *ComputedDef) Kind() Kind             { return KindComputed }
func (d *ComputedDef) GeneratorScope() string { return d.scope }
func (d *ComputedDef) GeneratorName() string  { return d.genName }

func (d *ComputedDef) KeyFromView(a arena.Arena, v *rows.View) (arena.Slice, error) {
	key, err := d.gen.GenerateKey(a, v)
	if err != nil {
		KeyExtractionErrors.WithLabelValues(d.name, d.Kind().String(), "generator").Inc()
		return arena.Slice{}, err
	}
	if key.Len() > rows.MaxKeyLen {
		key.Release()
		KeyExtractionErrors.WithLabelValues(d.name, d.Kind().String(), "too_large").Inc()
		return arena.Slice{}, fmt.Errorf("%w: index %q: generated %d bytes",
			ravendb_errors.ErrKeyTooLarge, d.name, key.Len())
	}
	KeyExtractions.WithLabelValues(d.name, d.Kind().String()).Inc()
	return key, nil
}

// KeyFromBuilder materializes the builder into a scratch buffer, runs the
// generator over a transient view of it and releases the scratch right away.
// The generator only knows the view addressing contract.
func (d *ComputedDef) KeyFromBuilder(a arena.Arena, b *rows.Builder) (arena.Slice, error) {
	tmp := a.Allocate(b.Size())
	defer tmp.Release()
	flat := b.AppendTo(tmp.Bytes()[:0])
	v, err := rows.NewView(flat)
	if err != nil {
		return arena.Slice{}, err
	}
	return d.KeyFromView(a, v)
}

// SetEntryResizeHook attaches the change-size callback. Set once; attaching
// twice or attaching nil is a caller bug.
func (d *ComputedDef) SetEntryResizeHook(fn func(oldSize, newSize int)) {
	if fn == nil {
		panic("nil entry-resize hook")
	}
	if d.onEntryResize != nil {
		panic(fmt.Sprintf("entry-resize hook already attached on index %q", d.name))
	}
	d.onEntryResize = fn
}

// NotifyEntryResized reports that the stored value of an index entry changed
// size. Best-effort and synchronous; without a hook it does nothing.
func (d *ComputedDef) NotifyEntryResized(oldSize, newSize int) {
	if d.onEntryResize != nil {
		d.onEntryResize(oldSize, newSize)
	}
}

func (d *ComputedDef) AppendDefinition(b *rows.Builder) {
	b.AddInt64(int64(KindComputed)).
		AddBool(d.global).
		AddString(d.name).
		AddString(d.genName).
		AddString(d.scope)
}

func readComputedDef(v *rows.View) (*ComputedDef, error) {
	if v.FieldCount() != 5 {
		return nil, fmt.Errorf("%w: computed record has %d fields",
			ravendb_errors.ErrBadDefinition, v.FieldCount())
	}
	global, err := rows.BoolField(v.Field(1))
	if err != nil {
		return nil, err
	}
	d, err := NewComputedDef(string(v.Field(2)), global, string(v.Field(4)), string(v.Field(3)))
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *ComputedDef) Validate() error {
	if len(d.name) == 0 {
		return fmt.Errorf("%w: empty name", ravendb_errors.ErrBadDefinition)
	}
	if len(d.scope) == 0 || len(d.genName) == 0 {
		return fmt.Errorf("%w: index %q: empty generator reference %q/%q",
			ravendb_errors.ErrBadDefinition, d.name, d.scope, d.genName)
	}
	if d.gen == nil {
		return fmt.Errorf("%w: index %q: unresolved generator",
			ravendb_errors.ErrBadDefinition, d.name)
	}
	return nil
}

func (d *ComputedDef) EnsureIdentical(other Definition) error {
	if err := ensureSameHeader(d, other); err != nil {
		return err
	}
	o, ok := other.(*ComputedDef)
	if !ok {
		return mismatch(d.name, "kind", d.Kind(), other.Kind())
	}
	// generator identity is the symbolic reference; behavior cannot be
	// introspected
	if d.scope != o.scope || d.genName != o.genName {
		return mismatch(d.name, "key generator",
			generatorId(d.scope, d.genName), generatorId(o.scope, o.genName))
	}
	return nil
}
