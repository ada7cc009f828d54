// Provides common ravendb errors definitions.
package ravendb_errors

import "errors"

var (
	ErrKeyTooLarge      = errors.New("ravendb: index key exceeds the maximum slice length")
	ErrNegativeFieldLen = errors.New("ravendb: negative field length")
	ErrFixedKeySize     = errors.New("ravendb: fixed-size index field is not 8 bytes")
	ErrBadRowFormat     = errors.New("ravendb: bad packed row format")

	ErrSchemaMismatch  = errors.New("ravendb: persisted index definition differs from the one in code")
	ErrSchemaCorrupt   = errors.New("ravendb: persisted schema failed checksum verification")
	ErrDuplicateIndex  = errors.New("ravendb: duplicate index name in schema")
	ErrIndexUnknown    = errors.New("ravendb: unknown index name")
	ErrBadDefinition   = errors.New("ravendb: invalid index definition")

	ErrGeneratorUnknown = errors.New("ravendb: key generator is not registered")
	ErrNotKeyGenerator  = errors.New("ravendb: registered value is not a key generator")

	ErrRowExists = errors.New("ravendb: a row with this primary key already exists")
	ErrClosed    = errors.New("ravendb: table is not open")
)
