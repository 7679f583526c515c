package metrics

// CircuitDurationBuckets defines latency buckets for circuit execution
// duration metrics. Circuits run under a 30s default budget, so buckets
// extend past it to catch timeout-shaped tails.
var CircuitDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// WorkflowDurationBuckets defines latency buckets for end-to-end multi-channel
// workflow duration metrics.
var WorkflowDurationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// HTTPDurationBuckets defines latency buckets for HTTP request duration
// metrics.
var HTTPDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
