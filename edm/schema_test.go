package edm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odatajson "github.com/reoring/odatajson"
)

const testModelYAML = `
namespace: NS
types:
  - name: Address
    properties:
      - {name: Street, type: String}
      - {name: Zip, type: Int32, nullable: false}
  - name: Person
    kind: entity
    open: true
    properties:
      - {name: ID, type: Int32, nullable: false}
      - {name: Home, type: Address}
      - {name: Tags, type: Collection(String)}
  - name: Employee
    kind: entity
    base: Person
    properties:
      - {name: Badge, type: Guid}
enums:
  - {name: Color, members: [Red, Green]}
terms:
  - {name: Stamp, type: DateTimeOffset}
  - {name: Favorite, type: Color}
---
namespace: Other
terms:
  - {name: Owner, type: NS.Person}
`

func TestLoadYAML_ResolvesTypesAndTerms(t *testing.T) {
	s, err := LoadYAML([]byte(testModelYAML))
	require.NoError(t, err)

	zip, ok := LookupProperty(s, "NS.Address", "Zip")
	require.True(t, ok)
	assert.Equal(t, "Edm.Int32", zip.Name)
	assert.False(t, zip.Nullable)

	tags, ok := LookupProperty(s, "NS.Employee", "Tags")
	require.True(t, ok, "inherited property")
	assert.Equal(t, KindCollection, tags.Kind)
	assert.Equal(t, "Collection(Edm.String)", tags.Name)

	stamp, ok := s.LookupTerm("NS.Stamp")
	require.True(t, ok)
	assert.Equal(t, odatajson.PrimitiveDateTimeOffset, stamp.Primitive)

	fav, ok := s.LookupTerm("NS.Favorite")
	require.True(t, ok)
	assert.Equal(t, KindEnum, fav.Kind)

	owner, ok := s.LookupTerm("Other.Owner")
	require.True(t, ok)
	assert.Equal(t, KindEntity, owner.Kind)

	assert.True(t, IsOpenType(s, "NS.Employee"))
	assert.False(t, IsOpenType(s, "NS.Address"))
	members, _ := s.EnumMembers("NS.Color")
	assert.Equal(t, []string{"Red", "Green"}, members)
}

func TestLoadYAML_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown property type": "namespace: NS\ntypes:\n  - name: A\n    properties:\n      - {name: X, type: Missing}\n",
		"unknown base":          "namespace: NS\ntypes:\n  - {name: A, base: Nope}\n",
		"duplicate type":        "namespace: NS\ntypes:\n  - {name: A}\n  - {name: A}\n",
		"bad kind":              "namespace: NS\ntypes:\n  - {name: A, kind: table}\n",
		"malformed":             "types: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadYAML([]byte(doc))
			require.Error(t, err)
			e, ok := odatajson.AsError(err)
			require.True(t, ok)
			assert.Equal(t, odatajson.CategoryValidation, e.Category)
		})
	}
}

func TestSchema_IsAssignableFrom(t *testing.T) {
	s, err := LoadYAML([]byte(testModelYAML))
	require.NoError(t, err)

	i32 := PrimitiveRef(odatajson.PrimitiveInt32, true)
	i64 := PrimitiveRef(odatajson.PrimitiveInt64, true)
	dbl := PrimitiveRef(odatajson.PrimitiveDouble, true)
	str := PrimitiveRef(odatajson.PrimitiveString, true)

	assert.True(t, s.IsAssignableFrom(i64, i32), "Int32 promotes to Int64")
	assert.False(t, s.IsAssignableFrom(i32, i64))
	assert.True(t, s.IsAssignableFrom(dbl, i32))
	assert.False(t, s.IsAssignableFrom(str, i32))
	assert.True(t, s.IsAssignableFrom(UntypedRef(), str))

	assert.True(t, s.IsAssignableFrom(s.MustRef("NS.Person", true), s.MustRef("NS.Employee", true)))
	assert.False(t, s.IsAssignableFrom(s.MustRef("NS.Employee", true), s.MustRef("NS.Person", true)))
	assert.True(t, s.IsAssignableFrom(CollectionRef(i64, true), CollectionRef(i32, true)))
	assert.False(t, s.IsAssignableFrom(i32, CollectionRef(i32, true)))
}

func TestSchema_IsPrimitiveJSONNative(t *testing.T) {
	s := NewSchema()
	for _, k := range []odatajson.PrimitiveKind{odatajson.PrimitiveBoolean, odatajson.PrimitiveString, odatajson.PrimitiveInt32, odatajson.PrimitiveDouble} {
		assert.True(t, s.IsPrimitiveJSONNative(PrimitiveRef(k, true)), k.TypeName())
	}
	for _, k := range []odatajson.PrimitiveKind{odatajson.PrimitiveInt64, odatajson.PrimitiveDecimal, odatajson.PrimitiveDateTimeOffset, odatajson.PrimitiveGuid} {
		assert.False(t, s.IsPrimitiveJSONNative(PrimitiveRef(k, true)), k.TypeName())
	}
	_, ok := s.LookupType("NS.Nothing")
	assert.False(t, ok)
}
