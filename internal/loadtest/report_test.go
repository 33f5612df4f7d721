package loadtest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	results := []workerResult{
		{succeeded: 2, failed: 1, total: 30 * time.Millisecond, min: 10 * time.Millisecond, max: 20 * time.Millisecond},
		{succeeded: 2, failed: 0, total: 10 * time.Millisecond, min: 4 * time.Millisecond, max: 6 * time.Millisecond},
		{succeeded: 0, failed: 3},
	}
	r := aggregate(3, results, 2*time.Second)

	assert.Equal(t, 8, r.Attempted)
	assert.Equal(t, 4, r.Succeeded)
	assert.Equal(t, 4, r.Failed)
	assert.Equal(t, 0.5, r.SuccessRate)
	assert.Equal(t, 10*time.Millisecond, r.AvgLatency)
	assert.Equal(t, 4*time.Millisecond, r.MinLatency)
	assert.Equal(t, 20*time.Millisecond, r.MaxLatency)
	assert.Equal(t, 2.0, r.Throughput)
}

func TestAggregateZeroes(t *testing.T) {
	r := aggregate(2, make([]workerResult, 2), 0)
	assert.Zero(t, r.Attempted)
	assert.Zero(t, r.SuccessRate)
	assert.Zero(t, r.AvgLatency)
	assert.Zero(t, r.Throughput)
}

func TestWorkerResultRecord(t *testing.T) {
	var r workerResult
	r.record(5 * time.Millisecond)
	r.record(2 * time.Millisecond)
	r.record(9 * time.Millisecond)
	assert.Equal(t, 3, r.succeeded)
	assert.Equal(t, 2*time.Millisecond, r.min)
	assert.Equal(t, 9*time.Millisecond, r.max)
	assert.Equal(t, 16*time.Millisecond, r.total)
}

func TestReportString(t *testing.T) {
	r := Report{Workers: 10, Attempted: 100, Succeeded: 100, SuccessRate: 1, AvgLatency: 1500 * time.Microsecond, Throughput: 812.5, Elapsed: 123 * time.Millisecond}
	out := r.String()
	assert.True(t, strings.Contains(out, "Success Rate: 100.00%"))
	assert.True(t, strings.Contains(out, "Average Response Time: 1.50ms"))
	assert.True(t, strings.Contains(out, "Throughput: 812.50 requests/second"))
	assert.True(t, strings.Contains(out, "Concurrency Level: 10 workers"))
}
