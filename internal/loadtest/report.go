package loadtest

import (
	"fmt"
	"strings"
	"time"
)

// Report is the aggregate outcome of one run.  Latency figures cover
// successful calls only.
type Report struct {
	Workers     int
	Attempted   int
	Succeeded   int
	Failed      int
	SuccessRate float64 // succeeded / attempted, in [0, 1]
	AvgLatency  time.Duration
	MinLatency  time.Duration
	MaxLatency  time.Duration
	Elapsed     time.Duration
	Throughput  float64 // successful requests per second
}

func aggregate(workers int, results []workerResult, elapsed time.Duration) Report {
	r := Report{Workers: workers, Elapsed: elapsed}
	var total time.Duration
	for _, res := range results {
		if res.succeeded > 0 {
			if r.Succeeded == 0 || res.min < r.MinLatency {
				r.MinLatency = res.min
			}
			if res.max > r.MaxLatency {
				r.MaxLatency = res.max
			}
		}
		r.Succeeded += res.succeeded
		r.Failed += res.failed
		total += res.total
	}
	r.Attempted = r.Succeeded + r.Failed
	if r.Attempted > 0 {
		r.SuccessRate = float64(r.Succeeded) / float64(r.Attempted)
	}
	if r.Succeeded > 0 {
		r.AvgLatency = total / time.Duration(r.Succeeded)
	}
	if elapsed > 0 {
		r.Throughput = float64(r.Succeeded) / elapsed.Seconds()
	}
	return r
}

// String renders the report the way the CLI prints it.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Requests: %d\n", r.Attempted)
	fmt.Fprintf(&b, "Successful: %d\n", r.Succeeded)
	fmt.Fprintf(&b, "Errors: %d\n", r.Failed)
	fmt.Fprintf(&b, "Success Rate: %.2f%%\n", r.SuccessRate*100)
	fmt.Fprintf(&b, "Average Response Time: %.2fms\n", ms(r.AvgLatency))
	fmt.Fprintf(&b, "Min/Max Response Time: %.2fms / %.2fms\n", ms(r.MinLatency), ms(r.MaxLatency))
	fmt.Fprintf(&b, "Throughput: %.2f requests/second\n", r.Throughput)
	fmt.Fprintf(&b, "Total Duration: %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "Concurrency Level: %d workers\n", r.Workers)
	return b.String()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
