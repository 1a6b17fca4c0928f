package metrics

import "time"

// KeyLengthBuckets cover the key lengths found in practice.
var KeyLengthBuckets = []float64{1, 2, 3, 4, 5, 6, 8, 10, 12, 16, 20, 32, 64}

// Analysis holds the metrics recorded by the analysis service.
type Analysis struct {
	registry *Registry

	AnalysesTotal    *Counter
	FailuresTotal    *Counter
	DegenerateTotal  *Counter
	LettersTotal     *Counter
	RequestsTotal    *Counter
	RateLimitedTotal *Counter
	RunsRecorded     *Gauge

	AnalysisDuration *Histogram
	KeyLength        *Histogram
}

// NewAnalysis registers the service metrics in registry.
func NewAnalysis(registry *Registry) *Analysis {
	if registry == nil {
		registry = NewRegistry("kasiski")
	}
	return &Analysis{
		registry: registry,

		AnalysesTotal: registry.Counter("analyses_total",
			"Analyses that recovered a key", nil),
		FailuresTotal: registry.Counter("analysis_failures_total",
			"Analyses rejected or failed", nil),
		DegenerateTotal: registry.Counter("degenerate_total",
			"Analyses where no prime cleared the vote threshold", nil),
		LettersTotal: registry.Counter("letters_total",
			"Ciphertext letters analyzed", nil),
		RequestsTotal: registry.Counter("http_requests_total",
			"HTTP requests served", nil),
		RateLimitedTotal: registry.Counter("http_rate_limited_total",
			"HTTP requests rejected by the rate limiter", nil),
		RunsRecorded: registry.Gauge("runs_recorded",
			"Runs in the history store", nil),

		AnalysisDuration: registry.Histogram("analysis_duration_seconds",
			"Time spent recovering a key", nil, DurationBuckets),
		KeyLength: registry.Histogram("key_length",
			"Recovered key lengths", nil, KeyLengthBuckets),
	}
}

// Registry returns the registry the metrics live in.
func (m *Analysis) Registry() *Registry {
	return m.registry
}

// ObserveAnalysis records a successful analysis.
func (m *Analysis) ObserveAnalysis(d time.Duration, letters, keyLength int, degenerate bool) {
	m.AnalysesTotal.Inc()
	m.LettersTotal.Add(uint64(letters))
	m.AnalysisDuration.ObserveDuration(d)
	m.KeyLength.Observe(float64(keyLength))
	if degenerate {
		m.DegenerateTotal.Inc()
	}
}
