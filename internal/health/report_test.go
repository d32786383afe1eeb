package health

import (
	"encoding/json"
	"strings"
	"testing"
)

func results(statuses ...Status) []Result {
	out := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Result{Status: s})
	}
	return out
}

func TestScore(t *testing.T) {
	cases := []struct {
		name    string
		results []Result
		want    int
	}{
		{"empty", nil, 100},
		{"only info", results(StatusInfo, StatusInfo), 100},
		{"all pass", results(StatusPass, StatusPass, StatusPass, StatusInfo), 100},
		{"one warning", results(StatusPass, StatusPass, StatusPass, StatusWarning), 88},
		{"one fail", results(StatusPass, StatusPass, StatusPass, StatusFail), 75},
		{"all fail", results(StatusFail, StatusFail), 0},
		{"mixed", results(StatusPass, StatusWarning, StatusFail, StatusInfo), 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.results); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestScoreDecreasesMonotonically(t *testing.T) {
	pass := Score(results(StatusPass, StatusPass))
	warn := Score(results(StatusPass, StatusWarning))
	fail := Score(results(StatusPass, StatusFail))
	if !(pass > warn && warn > fail) {
		t.Fatalf("expected pass > warning > fail, got %d %d %d", pass, warn, fail)
	}
}

func TestRecommendations(t *testing.T) {
	res := []Result{
		{Priority: PriorityHigh, Recommendations: []string{"h1", "h2"}},
		{Priority: PriorityCritical, Recommendations: []string{"c1"}},
		{Priority: PriorityMedium, Recommendations: []string{"m1"}},
		{Priority: PriorityHigh, Recommendations: []string{"h1", "h3", "h4"}},
		{Priority: PriorityCritical, Recommendations: []string{"c2", "c1"}},
		{Priority: PriorityHigh, Recommendations: []string{"h5", "h6"}},
		{Priority: PriorityLow, Recommendations: []string{"l1"}},
	}
	got := strings.Join(Recommendations(res), ",")
	if got != "h1,h2,c1,h3,h4,c2,h5" {
		t.Fatalf("unexpected recommendations %s", got)
	}
	if len(Recommendations(nil)) != 0 {
		t.Fatalf("expected empty list")
	}
}

func TestResultJSONTagsDetails(t *testing.T) {
	raw, err := json.Marshal(Result{
		Category: CategoryPerformance,
		Test:     "Query latency",
		Status:   StatusPass,
		Details:  LatencyDetails{DurationMS: 42},
		Priority: PriorityLow,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Recommendations []string `json:"recommendations"`
		Details         struct {
			Kind string         `json:"kind"`
			Data map[string]any `json:"data"`
		} `json:"details"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Details.Kind != "latency" || decoded.Details.Data["duration_ms"] != float64(42) {
		t.Fatalf("unexpected details %s", raw)
	}
	if decoded.Recommendations == nil {
		t.Fatalf("recommendations must encode as a list: %s", raw)
	}
}
