package models

import "strconv"

// MetricState distinguishes the three states an expensive numeric field can
// be in. The legacy data encoded all of "never attempted", "failed" and
// "computed as zero" with a bare 0; the pipeline keeps the distinction
// internally and only collapses it at the CSV/SQL edges.
type MetricState int

const (
	// MetricUnattempted means no computation has ever been tried.
	MetricUnattempted MetricState = iota
	// MetricKnown means the value was computed successfully.
	MetricKnown
	// MetricFailed means every fallback was exhausted; the value is not
	// recomputed on later runs.
	MetricFailed
)

// Metric is a tri-state numeric field. The zero value is Unattempted.
type Metric struct {
	State MetricState
	Value float64
}

// Known returns a Metric holding a successfully computed value.
func Known(v float64) Metric { return Metric{State: MetricKnown, Value: v} }

// Failed returns a permanently failed Metric.
func Failed() Metric { return Metric{State: MetricFailed} }

func (m Metric) IsKnown() bool       { return m.State == MetricKnown }
func (m Metric) IsUnattempted() bool { return m.State == MetricUnattempted }
func (m Metric) IsFailed() bool      { return m.State == MetricFailed }

// ParseMetric decodes the snapshot-file encoding: empty cell means the value
// was never attempted, a literal 0 means a previous run failed permanently,
// anything else is a known value.
func ParseMetric(s string) Metric {
	if s == "" {
		return Metric{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Metric{}
	}
	if v == 0 {
		return Failed()
	}
	return Known(v)
}

// String encodes the Metric back into the snapshot-file form.
func (m Metric) String() string {
	switch m.State {
	case MetricKnown:
		return strconv.FormatFloat(m.Value, 'f', -1, 64)
	case MetricFailed:
		return "0"
	default:
		return ""
	}
}

// Minutes returns the value for persistence as a nullable integer column:
// nil when never attempted, 0 when permanently failed, the rounded value
// otherwise.
func (m Metric) Minutes() *int {
	switch m.State {
	case MetricKnown:
		v := int(m.Value + 0.5)
		return &v
	case MetricFailed:
		v := 0
		return &v
	default:
		return nil
	}
}
