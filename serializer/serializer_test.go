package serializer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/annotation"
	"github.com/reoring/odatajson/edm"
	"github.com/reoring/odatajson/jsonwriter"
)

const peopleYAML = `
namespace: NS
types:
  - name: Address
    properties:
      - {name: Street, type: String}
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
`

func newSerializer(t *testing.T, set Settings) (*Serializer, *strings.Builder) {
	t.Helper()
	if set.Model == nil {
		m, err := edm.LoadYAML([]byte(peopleYAML))
		require.NoError(t, err)
		set.Model = m
	}
	sb := &strings.Builder{}
	return New(jsonwriter.New(sb, jsonwriter.Options{}), set), sb
}

func home() *odatajson.Resource {
	return &odatajson.Resource{TypeName: "NS.Address", Properties: []odatajson.Property{{Name: "Street", Value: odatajson.String("Main")}}}
}

func TestWriteResource_Minimal(t *testing.T) {
	s, sb := newSerializer(t, Settings{ContextURL: "$metadata#People/$entity", AnnotationFilter: annotation.IncludeAll})
	r := &odatajson.Resource{
		TypeName:    "NS.Employee",
		ID:          "People(1)",
		Annotations: []odatajson.InstanceAnnotation{{Term: "NS.Note", Value: odatajson.String("x")}},
		Properties: []odatajson.Property{
			{Name: "ID", Value: odatajson.Int32(1)},
			{Name: "Home", Value: home()},
			{Name: "Tags", Value: &odatajson.Collection{TypeName: "Collection(Edm.String)", Items: []odatajson.Value{odatajson.String("a")}}},
			{Name: "Extra", Value: odatajson.Int64(5)},
			{Name: "Photo", Value: &odatajson.StreamReference{ReadLink: "People(1)/Photo", ContentType: "image/png"}},
		},
	}
	require.NoError(t, s.WriteResource(r, "NS.Person"))
	require.NoError(t, s.Flush())
	assert.Equal(t, `{"@odata.context":"$metadata#People/$entity","@odata.type":"#NS.Employee","@odata.id":"People(1)",`+
		`"@NS.Note":"x","ID":1,"Home":{"Street":"Main"},"Tags":["a"],"Extra@odata.type":"#Int64","Extra":5,`+
		`"Photo@odata.mediaReadLink":"People(1)/Photo","Photo@odata.mediaContentType":"image/png"}`, sb.String())
}

func TestWriteResource_Full(t *testing.T) {
	s, sb := newSerializer(t, Settings{Metadata: odatajson.MetadataFull})
	r := &odatajson.Resource{
		TypeName: "NS.Person",
		Properties: []odatajson.Property{
			{Name: "ID", Value: odatajson.Int32(1)},
			{Name: "Home", Value: home()},
			{Name: "Missing", Value: odatajson.Null{}},
		},
	}
	require.NoError(t, s.WriteResource(r, "NS.Person"))
	require.NoError(t, s.Flush())
	assert.Equal(t, `{"@odata.type":"#NS.Person","ID":1,"Home":{"@odata.type":"#NS.Address","Street":"Main"},"Missing":null}`, sb.String())
}

func TestWriteResource_AnnotationsFilteredByDefault(t *testing.T) {
	s, sb := newSerializer(t, Settings{})
	r := &odatajson.Resource{
		TypeName:    "NS.Person",
		Annotations: []odatajson.InstanceAnnotation{{Term: "NS.Note", Value: odatajson.String("x")}},
		Properties: []odatajson.Property{{
			Name:        "ID",
			Value:       odatajson.Int32(1),
			Annotations: []odatajson.InstanceAnnotation{{Term: "NS.Note", Value: odatajson.String("y")}},
		}},
	}
	require.NoError(t, s.WriteResource(r, "NS.Person"))
	require.NoError(t, s.Flush())
	assert.Equal(t, `{"ID":1}`, sb.String())
}

func TestWriteResourceSet(t *testing.T) {
	count := int64(2)
	set := &odatajson.ResourceSet{
		Count:       &count,
		NextLink:    "People?$skip=2",
		Annotations: []odatajson.InstanceAnnotation{{Term: "NS.Note", Value: odatajson.String("x")}},
		Items: []*odatajson.Resource{
			{TypeName: "NS.Person", Properties: []odatajson.Property{{Name: "ID", Value: odatajson.Int32(1)}}},
			{TypeName: "NS.Employee", Properties: []odatajson.Property{{Name: "ID", Value: odatajson.Int32(2)}}},
		},
	}
	t.Run("v4", func(t *testing.T) {
		s, sb := newSerializer(t, Settings{ContextURL: "$metadata#People", AnnotationFilter: annotation.IncludeAll})
		require.NoError(t, s.WriteResourceSet(set, "NS.Person"))
		require.NoError(t, s.Flush())
		assert.Equal(t, `{"@odata.context":"$metadata#People","@odata.count":2,"@NS.Note":"x",`+
			`"value":[{"ID":1},{"@odata.type":"#NS.Employee","ID":2}],"@odata.nextLink":"People?$skip=2"}`, sb.String())
	})
	t.Run("v401", func(t *testing.T) {
		s, sb := newSerializer(t, Settings{Version: odatajson.V401})
		require.NoError(t, s.WriteResourceSet(set, "NS.Person"))
		require.NoError(t, s.Flush())
		assert.Equal(t, `{"@count":2,"value":[{"ID":1},{"@type":"#NS.Employee","ID":2}],"@nextLink":"People?$skip=2"}`, sb.String())
	})
	t.Run("derived set type", func(t *testing.T) {
		s, sb := newSerializer(t, Settings{})
		derived := &odatajson.ResourceSet{TypeName: "NS.Employee", Items: []*odatajson.Resource{{TypeName: "NS.Employee"}}}
		require.NoError(t, s.WriteResourceSet(derived, "NS.Person"))
		require.NoError(t, s.Flush())
		assert.Equal(t, `{"@odata.type":"#Collection(NS.Employee)","value":[{}]}`, sb.String())
	})
}

func TestWriteProperty(t *testing.T) {
	s, sb := newSerializer(t, Settings{ContextURL: "$metadata#People(1)/Big"})
	require.NoError(t, s.WriteProperty(odatajson.Int64(5), edm.PrimitiveRef(odatajson.PrimitiveInt64, false)))
	require.NoError(t, s.Flush())
	assert.Equal(t, `{"@odata.context":"$metadata#People(1)/Big","value":5}`, sb.String())

	s, sb = newSerializer(t, Settings{})
	require.NoError(t, s.WriteProperty(odatajson.Int64(5), nil))
	require.NoError(t, s.Flush())
	assert.Equal(t, `{"@odata.type":"#Int64","value":5}`, sb.String())

	s, sb = newSerializer(t, Settings{ContextURL: "$metadata#People(1)/Home"})
	require.NoError(t, s.WriteProperty(home(), s.set.Model.(*edm.Schema).MustRef("NS.Address", true)))
	require.NoError(t, s.Flush())
	assert.Equal(t, `{"@odata.context":"$metadata#People(1)/Home","Street":"Main"}`, sb.String())
}

func TestWriteValue_RejectsStreams(t *testing.T) {
	s, _ := newSerializer(t, Settings{})
	err := s.WriteValue(&odatajson.StreamReference{ReadLink: "x"}, nil)
	assert.True(t, odatajson.HasCode(err, odatajson.CodeWriterProtocol))
}

func TestWriteError(t *testing.T) {
	s, sb := newSerializer(t, Settings{})
	oe := ODataError{
		Code:        "bad",
		Message:     "Bad request",
		Target:      "x",
		Details:     []ErrorDetail{{Code: "d", Message: "m"}},
		InnerError:  map[string]any{"trace": "abc"},
		Annotations: []odatajson.InstanceAnnotation{{Term: "NS.Note", Value: odatajson.String("x")}},
	}
	require.NoError(t, s.WriteError(oe))
	require.NoError(t, s.Flush())
	assert.Equal(t, `{"error":{"code":"bad","message":"Bad request","target":"x","details":[{"code":"d","message":"m"}],`+
		`"innererror":{"trace":"abc"},"@NS.Note":"x"}}`, sb.String())
}

func TestErrorFrom(t *testing.T) {
	oe := ErrorFrom(odatajson.NewError(odatajson.CodeDuplicateContentID, "contentID", "1"))
	assert.Equal(t, odatajson.CodeDuplicateContentID, oe.Code)
	assert.Contains(t, oe.Message, "1")
	assert.Equal(t, "validation", oe.InnerError["category"])

	oe = ErrorFrom(errors.New("boom"))
	assert.Equal(t, ODataError{Code: "internal", Message: "boom"}, oe)
}
