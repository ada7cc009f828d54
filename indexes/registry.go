package indexes

import (
	"fmt"

	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/puzpuzpuz/xsync/v3"
)

// KeyGenerator computes an index key from a row view. Implementations must
// be stateless: the registry hands the same instance to every table and every
// transaction, with no synchronization.
//
// The view passed to GenerateKey may be transient (a builder materialized
// into a scratch buffer that is released right after the call); the returned
// key must not borrow from it.
//
// IndexKeyGenerator is a marker with no behavior. It asserts the value was
// written for this purpose, so a schema reload cannot accidentally bind to an
// unrelated same-named thing after a refactor.
type KeyGenerator interface {
	GenerateKey(a arena.Arena, v *rows.View) (arena.Slice, error)
	IndexKeyGenerator()
}

// generators is the process-wide symbolic-reference registry. Populated at
// startup, read on every schema reload. Values are kept as `any` so that a
// bad registration surfaces as a resolution error instead of being rejected
// silently at compile time somewhere far from the reload path.
var generators = xsync.NewMapOf[string, any]()

func generatorId(scope, name string) string {
	return scope + "/" + name
}

// RegisterKeyGenerator publishes a key generator under a stable (scope, name)
// pair. Call it from package init or early in main, before any table opens.
// Re-registering the same pair replaces the previous value.
func RegisterKeyGenerator(scope, name string, g any) {
	if g == nil {
		panic("nil key generator registered")
	}
	generators.Store(generatorId(scope, name), g)
}

// UnregisterKeyGenerator removes a registration. Intended for tests.
func UnregisterKeyGenerator(scope, name string) {
	generators.Delete(generatorId(scope, name))
}

// ResolveKeyGenerator looks a symbolic reference up. An unknown reference or
// a registered value without the KeyGenerator marker is a hard error; a
// half-resolved computed index must never be used.
func ResolveKeyGenerator(scope, name string) (KeyGenerator, error) {
	v, ok := generators.Load(generatorId(scope, name))
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ravendb_errors.ErrGeneratorUnknown, scope, name)
	}
	g, ok := v.(KeyGenerator)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s is %T", ravendb_errors.ErrNotKeyGenerator, scope, name, v)
	}
	return g, nil
}
