package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OperationWritten("requests", false)
	c.OperationWritten("requests", true)
	c.OperationWritten("requests", true)
	c.ChangesetCompleted()
	c.BatchCompleted("requests")
	c.Error("duplicate_content_id")
	c.BodyWritten(100)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("requests", "batch")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("requests", "changeset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.changesets))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batches.WithLabelValues("requests")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errors.WithLabelValues("duplicate_content_id")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.bodyBytes))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.OperationWritten("responses", false)
	c.ChangesetCompleted()
	c.BatchCompleted("responses")
	c.Error("x")
	c.BodyWritten(1)
}
