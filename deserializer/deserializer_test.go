package deserializer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/annotation"
	"github.com/reoring/odatajson/edm"
	"github.com/reoring/odatajson/jsonreader"
	"github.com/reoring/odatajson/jsonwriter"
	"github.com/reoring/odatajson/serializer"
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
      - {name: Born, type: Date}
  - name: Employee
    kind: entity
    base: Person
terms:
  - {name: Rank, type: Int64}
`

func model(t *testing.T) *edm.Schema {
	t.Helper()
	m, err := edm.LoadYAML([]byte(peopleYAML))
	require.NoError(t, err)
	return m
}

func newDeserializer(payload string, set Settings) *Deserializer {
	return New(jsonreader.NewBytes([]byte(payload), jsonreader.Options{}), set)
}

func TestAnnotationRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	anns := []odatajson.InstanceAnnotation{
		{Term: "NS.Title", Value: odatajson.String("hello")},
		{Term: "NS.Small", Value: odatajson.Int32(7)},
		{Term: "NS.Big", Value: odatajson.Int64(1 << 40)},
		{Term: "NS.Ratio", Value: odatajson.Double(0.25)},
		{Term: "NS.Flag", Value: odatajson.Boolean(true)},
		{Term: "NS.Nothing", Value: odatajson.Null{}},
		{Term: "NS.Home", Value: &odatajson.Resource{
			TypeName:   "NS.Address",
			Properties: []odatajson.Property{{Name: "Street", Value: odatajson.String("Main")}},
		}},
		{Term: "NS.Tags", Value: &odatajson.Collection{
			TypeName: "Collection(Edm.String)",
			Items:    []odatajson.Value{odatajson.String("a"), odatajson.String("b")},
		}},
	}
	r := &odatajson.Resource{
		TypeName:    "NS.Thing",
		Annotations: append(anns, odatajson.InstanceAnnotation{Term: "NS.Stamp", Value: odatajson.DateTimeOffset(ts)}),
		Properties: []odatajson.Property{{
			Name:        "Name",
			Value:       odatajson.String("x"),
			Annotations: []odatajson.InstanceAnnotation{{Term: "NS.Big", Value: odatajson.Int64(3)}},
		}},
	}

	sb := &strings.Builder{}
	s := serializer.New(jsonwriter.New(sb, jsonwriter.Options{}), serializer.Settings{AnnotationFilter: annotation.IncludeAll})
	require.NoError(t, s.WriteResource(r, "NS.Thing"))
	require.NoError(t, s.Flush())

	got, err := newDeserializer(sb.String(), Settings{}).ReadResource("NS.Thing")
	require.NoError(t, err)
	require.Len(t, got.Annotations, len(anns)+1)
	assert.Equal(t, anns, got.Annotations[:len(anns)])

	last := got.Annotations[len(anns)]
	assert.Equal(t, "NS.Stamp", last.Term)
	p, ok := last.Value.(*odatajson.Primitive)
	require.True(t, ok)
	assert.Equal(t, odatajson.PrimitiveDateTimeOffset, p.Type)
	assert.True(t, ts.Equal(p.Value.(time.Time)))

	assert.Equal(t, r.Properties, got.Properties)
}

func TestReadResource_DeclaredTypes(t *testing.T) {
	payload := `{"@odata.context":"$metadata#People/$entity","@odata.type":"#NS.Employee","@odata.etag":"W/\"1\"",` +
		`"ID":1,"Home":{"Street":"Main"},"Tags":["a"],"Born":"2000-01-02",` +
		`"Extra@odata.type":"#Int64","Extra":"5","Rank@NS.Rank":9,` +
		`"Photo@odata.mediaReadLink":"People(1)/Photo","Photo@odata.mediaContentType":"image/png"}`
	d := newDeserializer(payload, Settings{Model: model(t)})
	r, err := d.ReadResource("NS.Person")
	require.NoError(t, err)
	assert.Equal(t, "$metadata#People/$entity", d.ContextURL())
	assert.Equal(t, "NS.Employee", r.TypeName)
	assert.Equal(t, `W/"1"`, r.ETag)

	id, _ := r.Property("ID")
	assert.Equal(t, odatajson.Int32(1), id.Value)
	h, _ := r.Property("Home")
	assert.Equal(t, "NS.Address", h.Value.(*odatajson.Resource).TypeName)
	tags, _ := r.Property("Tags")
	assert.Equal(t, &odatajson.Collection{TypeName: "Collection(Edm.String)", Items: []odatajson.Value{odatajson.String("a")}}, tags.Value)
	born, _ := r.Property("Born")
	assert.Equal(t, odatajson.PrimitiveDate, born.Value.(*odatajson.Primitive).Type)
	extra, _ := r.Property("Extra")
	assert.Equal(t, odatajson.Int64(5), extra.Value)

	photo, ok := r.Property("Photo")
	require.True(t, ok)
	assert.Equal(t, &odatajson.StreamReference{ReadLink: "People(1)/Photo", ContentType: "image/png"}, photo.Value)

	// Annotations on a property without a value are not kept.
	_, ok = r.Property("Rank")
	assert.False(t, ok)
}

func TestReadResource_Errors(t *testing.T) {
	cases := map[string]struct {
		payload string
		code    string
	}{
		"bad int":          {`{"ID":"abc"}`, odatajson.CodeInvalidPrimitive},
		"unknown type":     {`{"X@odata.type":"#NS.Nope","X":1}`, odatajson.CodeUnresolvedType},
		"array for object": {`[]`, odatajson.CodeUnexpectedNode},
		"truncated":        {`{"ID":1`, odatajson.CodeParse},
		"bad date":         {`{"Born":"yesterday"}`, odatajson.CodeInvalidPrimitive},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newDeserializer(tc.payload, Settings{Model: model(t)}).ReadResource("NS.Person")
			require.Error(t, err)
			assert.True(t, odatajson.HasCode(err, tc.code), "got %v", err)
		})
	}
}

const feed = `{"@odata.count":2,"value":[{"ID":1},{"@odata.type":"#NS.Employee","ID":2}],"@NS.Note":"late","@odata.nextLink":"People?$skip=2"}`

func TestReadResourceSetStream(t *testing.T) {
	for _, buffering := range []bool{false, true} {
		d := newDeserializer(feed, Settings{Model: model(t), Buffering: buffering})
		var atStart odatajson.ResourceSet
		var items []*odatajson.Resource
		var set *odatajson.ResourceSet
		err := d.ReadResourceSetStream("NS.Person",
			func(s *odatajson.ResourceSet) error {
				set, atStart = s, *s
				return nil
			},
			func(r *odatajson.Resource) error {
				assert.NotNil(t, set, "start precedes items")
				items = append(items, r)
				return nil
			})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "NS.Person", items[0].TypeName)
		assert.Equal(t, "NS.Employee", items[1].TypeName)

		require.NotNil(t, set.Count)
		assert.Equal(t, int64(2), *set.Count)
		assert.Equal(t, "People?$skip=2", set.NextLink)
		require.Len(t, set.Annotations, 1)

		if buffering {
			assert.Equal(t, "People?$skip=2", atStart.NextLink)
			assert.Len(t, atStart.Annotations, 1)
		} else {
			assert.Empty(t, atStart.NextLink)
			assert.Empty(t, atStart.Annotations)
		}
	}
}

func TestReadResourceSet_RejectsPlainProperty(t *testing.T) {
	_, err := newDeserializer(`{"value":[],"foo":1}`, Settings{}).ReadResourceSet("NS.Person")
	e, ok := odatajson.AsError(err)
	require.True(t, ok)
	assert.Equal(t, odatajson.CodeUnexpectedProperty, e.Code)
	assert.Equal(t, "foo", e.Param("name"))
}

func TestReadCollection(t *testing.T) {
	d := newDeserializer(`{"@odata.context":"c","@odata.type":"#Collection(Int64)","value":[1,"2"]}`, Settings{})
	c, err := d.ReadCollection(nil)
	require.NoError(t, err)
	assert.Equal(t, "c", d.ContextURL())
	assert.Equal(t, &odatajson.Collection{TypeName: "Collection(Edm.Int64)", Items: []odatajson.Value{odatajson.Int64(1), odatajson.Int64(2)}}, c)

	c, err = newDeserializer(`{"value":[1,2.5,"x",null]}`, Settings{}).ReadCollection(nil)
	require.NoError(t, err)
	assert.Equal(t, []odatajson.Value{odatajson.Int32(1), odatajson.Double(2.5), odatajson.String("x"), odatajson.Null{}}, c.Items)
}

// Every kind of trailing property reports its own verbatim name.
func TestReadCollection_TrailingProperty(t *testing.T) {
	for _, name := range []string{"foo", "@odata.nextLink", "@NS.A", "value@NS.A", "@odata.context"} {
		payload := `{"value":[],"` + name + `":1}`
		_, err := newDeserializer(payload, Settings{}).ReadCollection(nil)
		e, ok := odatajson.AsError(err)
		require.True(t, ok, name)
		assert.Equal(t, odatajson.CodeUnexpectedProperty, e.Code, name)
		assert.Equal(t, name, e.Param("name"))
	}
}

func TestReadProperty(t *testing.T) {
	m := model(t)
	v, err := newDeserializer(`{"@odata.context":"c","value":"2000-01-02"}`, Settings{Model: m}).
		ReadProperty(edm.PrimitiveRef(odatajson.PrimitiveDate, true))
	require.NoError(t, err)
	assert.Equal(t, odatajson.PrimitiveDate, v.(*odatajson.Primitive).Type)

	v, err = newDeserializer(`{"@odata.context":"c","Street":"Main"}`, Settings{Model: m}).
		ReadProperty(m.MustRef("NS.Address", true))
	require.NoError(t, err)
	assert.Equal(t, "NS.Address", v.(*odatajson.Resource).TypeName)
}

func TestReadError_RoundTrip(t *testing.T) {
	oe := serializer.ODataError{
		Code:        "bad",
		Message:     "Bad request",
		Target:      "ID",
		Details:     []serializer.ErrorDetail{{Code: "d", Message: "m", Target: "x"}},
		Annotations: []odatajson.InstanceAnnotation{{Term: "NS.Retry", Value: odatajson.Int64(30)}},
	}
	sb := &strings.Builder{}
	s := serializer.New(jsonwriter.New(sb, jsonwriter.Options{}), serializer.Settings{})
	require.NoError(t, s.WriteError(oe))
	require.NoError(t, s.Flush())

	got, err := newDeserializer(sb.String(), Settings{}).ReadError()
	require.NoError(t, err)
	assert.Equal(t, oe, got)
}
