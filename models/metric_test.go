package models

import "testing"

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want Metric
	}{
		{"", Metric{}},
		{"0", Failed()},
		{"35", Known(35)},
		{"12.5", Known(12.5)},
		{"garbage", Metric{}},
	}

	for _, tt := range tests {
		got := ParseMetric(tt.in)
		if got != tt.want {
			t.Errorf("ParseMetric(%q) = %+v; want %+v", tt.in, got, tt.want)
		}
	}
}

func TestMetricString(t *testing.T) {
	tests := []struct {
		in   Metric
		want string
	}{
		{Metric{}, ""},
		{Failed(), "0"},
		{Known(35), "35"},
		{Known(12.5), "12.5"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("%+v.String() = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestMetricRoundTrip(t *testing.T) {
	for _, m := range []Metric{{}, Failed(), Known(42), Known(7.5)} {
		if got := ParseMetric(m.String()); got != m {
			t.Errorf("round trip of %+v gave %+v", m, got)
		}
	}
}

func TestMetricMinutes(t *testing.T) {
	if got := (Metric{}).Minutes(); got != nil {
		t.Errorf("unattempted Minutes() = %v; want nil", *got)
	}
	if got := Failed().Minutes(); got == nil || *got != 0 {
		t.Errorf("failed Minutes() = %v; want 0", got)
	}
	if got := Known(59.6).Minutes(); got == nil || *got != 60 {
		t.Errorf("Known(59.6).Minutes() = %v; want 60", got)
	}
}
