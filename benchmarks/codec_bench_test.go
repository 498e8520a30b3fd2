package benchmarks_test

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"testing"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/annotation"
	"github.com/reoring/odatajson/batch"
	"github.com/reoring/odatajson/deserializer"
	"github.com/reoring/odatajson/jsonreader"
	"github.com/reoring/odatajson/jsonwriter"
	"github.com/reoring/odatajson/serializer"
)

// ---- Helpers ----

// generateFeed returns a resource set payload of the form:
// {"@odata.count":N,"value":[{"ID":0,"Name":"n0","Active":true,"Score":0.5,"k0":"v0_0",...},...],"@odata.nextLink":"..."}
func generateFeed(numItems, extraFields int) []byte {
	var buf bytes.Buffer
	buf.Grow(numItems * (64 + extraFields*16))
	fmt.Fprintf(&buf, `{"@odata.count":%d,"@NS.Tag":"bench","value":[`, numItems)
	for i := 0; i < numItems; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `{"ID":%d,"Name":"n%d","Active":%t,"Score":%d.5`, i, i, i%2 == 0, i)
		for k := 0; k < extraFields; k++ {
			buf.WriteString(`,"k`)
			buf.WriteString(strconv.Itoa(k))
			buf.WriteString(`":"v`)
			buf.WriteString(strconv.Itoa(i))
			buf.WriteByte('_')
			buf.WriteString(strconv.Itoa(k))
			buf.WriteByte('"')
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`],"@odata.nextLink":"People?$skip=` + strconv.Itoa(numItems) + `"}`)
	return buf.Bytes()
}

func readFeed(tb testing.TB, data []byte, buffering bool) *odatajson.ResourceSet {
	tb.Helper()
	d := deserializer.New(jsonreader.NewBytes(data, jsonreader.Options{}), deserializer.Settings{Buffering: buffering})
	set, err := d.ReadResourceSet("")
	if err != nil {
		tb.Fatalf("read feed: %v", err)
	}
	return set
}

// ---- Benchmarks ----

func BenchmarkReadResourceSet(b *testing.B) {
	for _, size := range []int{10, 1000} {
		data := generateFeed(size, 8)
		for _, buffering := range []bool{false, true} {
			b.Run(fmt.Sprintf("items=%d/buffering=%t", size, buffering), func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(data)))
				for i := 0; i < b.N; i++ {
					readFeed(b, data, buffering)
				}
			})
		}
	}
}

func BenchmarkWriteResourceSet(b *testing.B) {
	set := readFeed(b, generateFeed(1000, 8), false)
	for _, level := range []odatajson.MetadataLevel{odatajson.MetadataMinimal, odatajson.MetadataFull} {
		b.Run(level.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				s := serializer.New(jsonwriter.New(io.Discard, jsonwriter.Options{}), serializer.Settings{
					Metadata:         level,
					AnnotationFilter: annotation.IncludeAll,
				})
				if err := s.WriteResourceSet(set, "NS.Person"); err != nil {
					b.Fatal(err)
				}
				if err := s.Flush(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkWriteLargeString(b *testing.B) {
	large := string(bytes.Repeat([]byte("odata \"json\"\n"), 1<<14))
	b.SetBytes(int64(len(large)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w := jsonwriter.New(io.Discard, jsonwriter.Options{})
		if err := w.WriteString(large); err != nil {
			b.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBatchWriter(b *testing.B) {
	body := []byte(`{"Name":"alice","Age":30}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w := batch.NewRequestWriter(io.Discard, batch.Options{BaseURL: "http://host/svc/"})
		if err := w.WriteStartBatch(); err != nil {
			b.Fatal(err)
		}
		if err := w.WriteStartChangeset("cs"); err != nil {
			b.Fatal(err)
		}
		for j := 0; j < 100; j++ {
			op, err := w.CreateOperationRequestMessage("POST", "People", strconv.Itoa(j), batch.URIAbsolute, nil)
			if err != nil {
				b.Fatal(err)
			}
			s, err := op.Stream()
			if err != nil {
				b.Fatal(err)
			}
			_, _ = s.Write(body)
			if err := s.Close(); err != nil {
				b.Fatal(err)
			}
		}
		if err := w.WriteEndChangeset(); err != nil {
			b.Fatal(err)
		}
		if err := w.WriteEndBatch(); err != nil {
			b.Fatal(err)
		}
	}
}

// TestFeedRoundTrip keeps the generated payload honest.
func TestFeedRoundTrip(t *testing.T) {
	set := readFeed(t, generateFeed(3, 2), true)
	if len(set.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(set.Items))
	}
	if set.Count == nil || *set.Count != 3 {
		t.Fatalf("count = %v, want 3", set.Count)
	}
	if set.NextLink != "People?$skip=3" {
		t.Fatalf("nextLink = %q", set.NextLink)
	}
	if len(set.Annotations) != 1 || set.Annotations[0].Term != "NS.Tag" {
		t.Fatalf("annotations = %+v", set.Annotations)
	}
	name, ok := set.Items[1].Property("Name")
	if !ok {
		t.Fatal("missing Name")
	}
	if p, _ := name.Value.(*odatajson.Primitive); p == nil || p.Value != "n1" {
		t.Fatalf("Name = %+v", name.Value)
	}
}
