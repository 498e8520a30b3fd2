package jsonwriter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odatajson "github.com/reoring/odatajson"
	"github.com/reoring/odatajson/codec"
)

func write(t *testing.T, opts Options, f func(w *Writer)) string {
	t.Helper()
	var buf bytes.Buffer
	w := New(&buf, opts)
	f(w)
	require.NoError(t, w.Flush())
	return buf.String()
}

func TestWriter_SeparatorsAndScopes(t *testing.T) {
	out := write(t, Options{}, func(w *Writer) {
		require.NoError(t, w.StartObject())
		require.NoError(t, w.WriteName("name"))
		require.NoError(t, w.WriteString("John"))
		require.NoError(t, w.WriteName("tags"))
		require.NoError(t, w.StartArray())
		require.NoError(t, w.WriteInt(1))
		require.NoError(t, w.WriteRawValue(`{"x":1}`))
		require.NoError(t, w.WriteNull())
		require.NoError(t, w.EndArray())
		require.NoError(t, w.WriteName("empty"))
		require.NoError(t, w.StartObject())
		require.NoError(t, w.EndObject())
		require.NoError(t, w.EndObject())
	})
	assert.Equal(t, `{"name":"John","tags":[1,{"x":1},null],"empty":{}}`, out)
}

func TestWriter_DecimalAndInt64HonorIEEE754Flag(t *testing.T) {
	dec := codec.MustDecimal("42.2")
	assert.Equal(t, `"42.2"`, write(t, Options{IEEE754Compatible: true}, func(w *Writer) { require.NoError(t, w.WriteDecimal(dec)) }))
	assert.Equal(t, `42.2`, write(t, Options{}, func(w *Writer) { require.NoError(t, w.WriteDecimal(dec)) }))
	assert.Equal(t, `"9007199254740993"`, write(t, Options{IEEE754Compatible: true}, func(w *Writer) { require.NoError(t, w.WriteInt64(9007199254740993)) }))
	assert.Equal(t, `9007199254740993`, write(t, Options{}, func(w *Writer) { require.NoError(t, w.WriteInt64(9007199254740993)) }))
}

func TestWriter_InvalidDecimal(t *testing.T) {
	w := New(&bytes.Buffer{}, Options{})
	err := w.WriteDecimal(codec.Decimal("4x"))
	assert.True(t, odatajson.HasCode(err, odatajson.CodeInvalidPrimitive))
}

func TestWriter_FloatSpecialValues(t *testing.T) {
	out := write(t, Options{}, func(w *Writer) {
		require.NoError(t, w.StartArray())
		require.NoError(t, w.WriteDouble(math.NaN()))
		require.NoError(t, w.WriteDouble(math.Inf(1)))
		require.NoError(t, w.WriteDouble(math.Inf(-1)))
		require.NoError(t, w.WriteDouble(1))
		require.NoError(t, w.WriteDouble(1.5))
		require.NoError(t, w.WriteSingle(float32(math.Inf(-1))))
		require.NoError(t, w.EndArray())
	})
	assert.Equal(t, `["NaN","INF","-INF",1.0,1.5,"-INF"]`, out)
}

func TestWriter_EscapeConvention(t *testing.T) {
	out := write(t, Options{}, func(w *Writer) { require.NoError(t, w.WriteString("a\"b\\c\n\x01<&>é")) })
	assert.Equal(t, `"a\"b\\c\n\u0001<&>é"`, out)
}

func TestWriter_TemporalAndBinaryFormats(t *testing.T) {
	tod, err := codec.NewTimeOfDay(13, 20, 0, 500_000_000)
	require.NoError(t, err)
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("", 2*3600))
	out := write(t, Options{}, func(w *Writer) {
		require.NoError(t, w.StartArray())
		require.NoError(t, w.WriteDate(codec.Date{Year: 2024, Month: time.May, Day: 6}))
		require.NoError(t, w.WriteDateTimeOffset(ts))
		require.NoError(t, w.WriteDuration(90*time.Minute))
		require.NoError(t, w.WriteTimeOfDay(tod))
		require.NoError(t, w.WriteBinary([]byte{1, 2, 3}))
		require.NoError(t, w.EndArray())
	})
	assert.Equal(t, `["2024-05-06","2024-05-06T07:08:09+02:00","PT1H30M","13:20:00.5000000","AQID"]`, out)
}

func TestWriter_ProtocolViolations(t *testing.T) {
	cases := map[string]func(w *Writer) error{
		"name outside object": func(w *Writer) error { return w.WriteName("a") },
		"name in array": func(w *Writer) error {
			_ = w.StartArray()
			return w.WriteName("a")
		},
		"two names": func(w *Writer) error {
			_ = w.StartObject()
			_ = w.WriteName("a")
			return w.WriteName("b")
		},
		"value without name": func(w *Writer) error {
			_ = w.StartObject()
			return w.WriteInt(1)
		},
		"end wrong scope": func(w *Writer) error {
			_ = w.StartObject()
			return w.EndArray()
		},
		"end object with pending name": func(w *Writer) error {
			_ = w.StartObject()
			_ = w.WriteName("a")
			return w.EndObject()
		},
		"second root": func(w *Writer) error {
			_ = w.WriteInt(1)
			return w.WriteInt(2)
		},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			err := f(New(&bytes.Buffer{}, Options{}))
			require.Error(t, err)
			assert.True(t, odatajson.HasCode(err, odatajson.CodeWriterProtocol), "got %v", err)
		})
	}
}

func TestWriter_FlushRejectsUnbalancedScopes(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, Options{})
	require.NoError(t, w.StartObject())
	err := w.Flush()
	assert.True(t, odatajson.HasCode(err, odatajson.CodeUnbalancedScopes))
	require.NoError(t, w.FlushBuffer())
	assert.Equal(t, "{", buf.String())
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return c.Buffer.Write(p)
}

func TestWriter_AutoFlushAtThreshold(t *testing.T) {
	var sink countingWriter
	w := New(&sink, Options{BufferSize: 32, FlushThreshold: 24})
	require.NoError(t, w.StartArray())
	for i := 0; i < 40; i++ {
		require.NoError(t, w.WriteInt(int32(i)))
	}
	assert.Positive(t, sink.writes, "buffer should have been flushed before Flush")
	require.NoError(t, w.EndArray())
	require.NoError(t, w.Flush())
	writes := sink.writes
	require.NoError(t, w.Flush())
	assert.Equal(t, writes, sink.writes, "flush of an empty buffer is a no-op")
	var ints []int
	require.NoError(t, json.Unmarshal(sink.Bytes(), &ints))
	assert.Len(t, ints, 40)
}

func TestWriter_LargeValuesStreamInChunks(t *testing.T) {
	long := strings.Repeat(`ab"cd`, 10)
	raw := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef, 0x01}, 13)
	out := write(t, Options{ChunkSize: 8}, func(w *Writer) {
		require.NoError(t, w.StartArray())
		require.NoError(t, w.WriteString(long))
		require.NoError(t, w.WriteBinary(raw))
		require.NoError(t, w.WriteRawValue("true"))
		require.NoError(t, w.EndArray())
	})
	want := `["` + strings.ReplaceAll(long, `"`, `\"`) + `","` + base64.StdEncoding.EncodeToString(raw) + `",true]`
	assert.Equal(t, want, out)
}

func TestWriter_StreamTextKeepsRunesIntact(t *testing.T) {
	text := "héllo 世界 \"quoted\""
	out := write(t, Options{ChunkSize: 4}, func(w *Writer) {
		require.NoError(t, w.StartObject())
		require.NoError(t, w.WriteName("t"))
		require.NoError(t, w.StreamText(iotest.OneByteReader(strings.NewReader(text))))
		require.NoError(t, w.WriteName("b"))
		require.NoError(t, w.StreamBinary(bytes.NewReader([]byte("hello world"))))
		require.NoError(t, w.EndObject())
	})
	assert.Equal(t, `{"t":"héllo 世界 \"quoted\"","b":"aGVsbG8gd29ybGQ="}`, out)
}

func TestWriter_JSONTreePassthrough(t *testing.T) {
	out := write(t, Options{}, func(w *Writer) {
		require.NoError(t, w.WriteJSONTree(map[string]any{"b": []any{true, nil}, "a": json.Number("2.50")}))
	})
	assert.Equal(t, `{"a":2.50,"b":[true,null]}`, out)
}

func TestWriter_WritePrimitiveDispatch(t *testing.T) {
	out := write(t, Options{}, func(w *Writer) {
		require.NoError(t, w.StartArray())
		require.NoError(t, w.WritePrimitive(odatajson.Int16(7)))
		require.NoError(t, w.WritePrimitive(odatajson.Boolean(true)))
		require.NoError(t, w.WritePrimitive(odatajson.GeographyPoint(1.5, 2)))
		require.NoError(t, w.EndArray())
	})
	assert.Equal(t, `[7,true,{"type":"Point","coordinates":[1.5,2.0],"crs":{"type":"name","properties":{"name":"EPSG:4326"}}}]`, out)

	w := New(&bytes.Buffer{}, Options{})
	err := w.WritePrimitive(&odatajson.Primitive{Type: odatajson.PrimitiveInt32, Value: "nope"})
	assert.True(t, odatajson.HasCode(err, odatajson.CodeInvalidPrimitive))
}

type ctxSink struct {
	bytes.Buffer
	sawCtx bool
}

func (c *ctxSink) Write(p []byte) (int, error) { return c.Buffer.Write(p) }

func (c *ctxSink) WriteContext(ctx context.Context, p []byte) (int, error) {
	c.sawCtx = ctx != nil
	return c.Buffer.Write(p)
}

func TestAsyncWriter_SameOutputAndContext(t *testing.T) {
	ctx := context.Background()
	var sink ctxSink
	a := NewAsync(&sink, Options{IEEE754Compatible: true})
	require.NoError(t, a.StartObject(ctx))
	require.NoError(t, a.WriteName(ctx, "v"))
	require.NoError(t, a.WriteDecimal(ctx, codec.MustDecimal("42.2")))
	require.NoError(t, a.EndObject(ctx))
	require.NoError(t, a.Flush(ctx))
	assert.Equal(t, `{"v":"42.2"}`, sink.String())
	assert.True(t, sink.sawCtx)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err := a.StartArray(cctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWriter_InvalidUTF8Replaced(t *testing.T) {
	out := write(t, Options{}, func(w *Writer) {
		require.NoError(t, w.StartObject())
		require.NoError(t, w.WriteName("k\xff"))
		require.NoError(t, w.WriteString("a\xffb\xc3"))
		require.NoError(t, w.EndObject())
	})
	assert.Equal(t, "{\"k�\":\"a�b�\"}", out)

	long := strings.Repeat("x", 10) + "\xfe\xff" + strings.Repeat("y", 10)
	chunked := write(t, Options{ChunkSize: 8}, func(w *Writer) {
		require.NoError(t, w.WriteString(long))
	})
	assert.Equal(t, `"`+strings.Repeat("x", 10)+"�"+strings.Repeat("y", 10)+`"`, chunked)

	streamed := write(t, Options{ChunkSize: 8}, func(w *Writer) {
		require.NoError(t, w.StreamText(strings.NewReader(long)))
	})
	assert.Equal(t, chunked, streamed)
}
