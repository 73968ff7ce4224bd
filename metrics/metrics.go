// Package metrics records counters and latencies for contract calls, cache
// reconciliation and payment enumeration.
package metrics

import "time"

// Recorder is implemented by metric backends. Labels may be nil; recognised
// keys are "method" and "outcome".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
