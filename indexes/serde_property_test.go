package indexes

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Serialize → deserialize must reproduce a definition EnsureIdentical accepts,
// for arbitrary valid field values.
func TestDefinitionSerdeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("field-range definitions survive a round trip", prop.ForAll(
		func(name string, global bool, start, count int) bool {
			d := NewFieldRangeDef(name, global, start, count)
			back, err := ReadDefinition(Serialize(d))
			if err != nil {
				return false
			}
			return d.EnsureIdentical(back) == nil
		},
		gen.Identifier(),
		gen.Bool(),
		gen.IntRange(0, 1<<20),
		gen.IntRange(1, 128),
	))

	properties.Property("fixed-size definitions survive a round trip", prop.ForAll(
		func(name string, global bool, start int) bool {
			d := NewFixedSizeDef(name, global, start)
			back, err := ReadFixedSizeDef(Serialize(d))
			if err != nil {
				return false
			}
			return d.EnsureIdentical(back) == nil
		},
		gen.Identifier(),
		gen.Bool(),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}
