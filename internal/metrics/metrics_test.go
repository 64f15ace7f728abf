package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCycleRun(t *testing.T) {
	before := testutil.ToFloat64(cycleRuns.WithLabelValues("metrics-test", "success"))
	CycleRun("metrics-test", "success", 250*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(cycleRuns.WithLabelValues("metrics-test", "success")))
}

func TestResetEntities_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(resetEntities.WithLabelValues("archived"))
	ResetEntities("archived", 0)
	ResetEntities("archived", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(resetEntities.WithLabelValues("archived")))
}

func TestDirectoryLookup(t *testing.T) {
	before := testutil.ToFloat64(directoryLookups.WithLabelValues("hit"))
	DirectoryLookup("hit")
	DirectoryLookup("hit")
	assert.Equal(t, before+2, testutil.ToFloat64(directoryLookups.WithLabelValues("hit")))
}
