// Package schema holds the full ordered set of index definitions of one
// table and persists it as a unit. On table open the persisted set is
// deserialized and compared field-by-field against the set supplied in code;
// any drift refuses the open.
package schema

import (
	"fmt"

	"github.com/PixeeSandbox/ravendb/indexes"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/cespare/xxhash"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var Validations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ravendb",
	Subsystem: "schema",
	Name:      "validations",
}, []string{"result"})

// Schema is an ordered set of index definitions: the implicit primary
// field-range set plus zero or more secondary indexes. Structurally immutable
// once validated.
type Schema struct {
	primary   *indexes.FieldRangeDef
	secondary []indexes.Definition
	byName    map[string]indexes.Definition
}

// New validates the definitions and fixes their order. Names must be unique
// across the whole set, the primary included.
func New(primary *indexes.FieldRangeDef, secondary ...indexes.Definition) (*Schema, error) {
	if primary == nil {
		panic("schema without a primary key definition")
	}
	s := &Schema{
		primary:   primary,
		secondary: secondary,
		byName:    make(map[string]indexes.Definition, len(secondary)+1),
	}
	for _, def := range s.all() {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byName[def.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ravendb_errors.ErrDuplicateIndex, def.Name())
		}
		s.byName[def.Name()] = def
	}
	return s, nil
}

func (s *Schema) all() []indexes.Definition {
	defs := make([]indexes.Definition, 0, len(s.secondary)+1)
	defs = append(defs, s.primary)
	return append(defs, s.secondary...)
}

func (s *Schema) Primary() *indexes.FieldRangeDef { return s.primary }

// Secondary returns the secondary definitions in declaration order.
func (s *Schema) Secondary() []indexes.Definition { return s.secondary }

func (s *Schema) Lookup(name string) (indexes.Definition, bool) {
	def, ok := s.byName[name]
	return def, ok
}

// Record framing inside the persisted body. Fixed-size definition records
// carry no kind tag of their own, so the frame tells them apart.
const (
	frameTagged = int32(0) // record starts with a kind tag
	frameFixed  = int32(1)
)

// Serialize encodes the whole set: a body row (table id, definition count,
// then a frame/record field pair per definition, primary first) wrapped with
// an xxhash trailer.
func (s *Schema) Serialize(tableId uuid.UUID) []byte {
	body := rows.NewBuilder()
	body.Add(tableId[:])
	body.AddInt32(int32(len(s.secondary) + 1))
	for _, def := range s.all() {
		frame := frameTagged
		if def.Kind() == indexes.KindFixedSize {
			frame = frameFixed
		}
		body.AddInt32(frame)
		body.Add(indexes.Serialize(def))
	}
	bodyBytes := body.Seal()

	return rows.NewBuilder().
		Add(bodyBytes).
		AddUint64(xxhash.Sum64(bodyBytes)).
		Seal()
}

// Deserialize reconstructs a persisted set. Checksum failure, malformed
// records and unresolvable computed references are all hard errors; a table
// must not open over a partially understood schema.
func Deserialize(data []byte) (uuid.UUID, *Schema, error) {
	outer, err := rows.NewView(data)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if outer.FieldCount() != 2 {
		return uuid.Nil, nil, fmt.Errorf("%w: %d outer fields",
			ravendb_errors.ErrSchemaCorrupt, outer.FieldCount())
	}
	bodyBytes := outer.Field(0)
	sum, err := rows.Uint64Field(outer.Field(1))
	if err != nil {
		return uuid.Nil, nil, err
	}
	if xxhash.Sum64(bodyBytes) != sum {
		return uuid.Nil, nil, ravendb_errors.ErrSchemaCorrupt
	}

	body, err := rows.NewView(bodyBytes)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if body.FieldCount() < 2 {
		return uuid.Nil, nil, fmt.Errorf("%w: %d body fields",
			ravendb_errors.ErrSchemaCorrupt, body.FieldCount())
	}
	tableId, err := uuid.FromBytes(body.Field(0))
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: %s", ravendb_errors.ErrSchemaCorrupt, err)
	}
	count, err := rows.Int32Field(body.Field(1))
	if err != nil {
		return uuid.Nil, nil, err
	}
	if count < 1 || body.FieldCount() != 2+2*int(count) {
		return uuid.Nil, nil, fmt.Errorf("%w: %d definitions in %d body fields",
			ravendb_errors.ErrSchemaCorrupt, count, body.FieldCount())
	}

	defs := make([]indexes.Definition, 0, count)
	for i := 0; i < int(count); i++ {
		frame, err := rows.Int32Field(body.Field(2 + 2*i))
		if err != nil {
			return uuid.Nil, nil, err
		}
		record := body.Field(3 + 2*i)
		var def indexes.Definition
		switch frame {
		case frameTagged:
			def, err = indexes.ReadDefinition(record)
		case frameFixed:
			def, err = indexes.ReadFixedSizeDef(record)
		default:
			err = fmt.Errorf("%w: unknown record frame %d", ravendb_errors.ErrSchemaCorrupt, frame)
		}
		if err != nil {
			return uuid.Nil, nil, err
		}
		defs = append(defs, def)
	}

	primary, ok := defs[0].(*indexes.FieldRangeDef)
	if !ok {
		return uuid.Nil, nil, fmt.Errorf("%w: primary record is %s",
			ravendb_errors.ErrSchemaCorrupt, defs[0].Kind())
	}
	s, err := New(primary, defs[1:]...)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return tableId, s, nil
}

// EnsureIdentical compares this (in-code) set against a persisted one,
// definition-by-definition in order, field-by-field. The first discrepancy is
// reported with the differing field and both values.
func (s *Schema) EnsureIdentical(persisted *Schema) error {
	err := s.ensureIdentical(persisted)
	if err != nil {
		Validations.WithLabelValues("mismatch").Inc()
		return err
	}
	Validations.WithLabelValues("ok").Inc()
	return nil
}

func (s *Schema) ensureIdentical(persisted *Schema) error {
	if len(s.secondary) != len(persisted.secondary) {
		return fmt.Errorf("%w: %d secondary indexes in code, %d persisted",
			ravendb_errors.ErrSchemaMismatch, len(s.secondary), len(persisted.secondary))
	}
	if err := s.primary.EnsureIdentical(persisted.primary); err != nil {
		return err
	}
	for i, def := range s.secondary {
		if err := def.EnsureIdentical(persisted.secondary[i]); err != nil {
			return err
		}
	}
	return nil
}
