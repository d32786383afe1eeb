package health

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

const (
	CategoryFunctionality = "functionality"
	CategoryPerformance   = "performance"
	CategorySecurity      = "security"
	CategoryErrorHandling = "error_handling"
	CategoryScalability   = "scalability"
)

// Details is the closed set of payloads a check can attach to its result.
type Details interface {
	Kind() string
	details()
}

type LatencyDetails struct {
	DurationMS int64 `json:"duration_ms"`
}

type ConcurrencyDetails struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type KeysDetails struct {
	Missing []string `json:"missing"`
}

type TablesDetails struct {
	Unprotected []string `json:"unprotected"`
	Missing     []string `json:"missing"`
}

type ErrorDetails struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type NoteDetails struct {
	Notes []string `json:"notes"`
}

func (LatencyDetails) Kind() string     { return "latency" }
func (ConcurrencyDetails) Kind() string { return "concurrency" }
func (KeysDetails) Kind() string        { return "keys" }
func (TablesDetails) Kind() string      { return "tables" }
func (ErrorDetails) Kind() string       { return "error" }
func (NoteDetails) Kind() string        { return "notes" }

func (LatencyDetails) details()     {}
func (ConcurrencyDetails) details() {}
func (KeysDetails) details()        {}
func (TablesDetails) details()      {}
func (ErrorDetails) details()       {}
func (NoteDetails) details()        {}

type Result struct {
	Category        string   `json:"category"`
	Test            string   `json:"test"`
	Status          Status   `json:"status"`
	Message         string   `json:"message"`
	Details         Details  `json:"-"`
	Recommendations []string `json:"recommendations"`
	Priority        Priority `json:"priority"`
}

type taggedDetails struct {
	Kind string  `json:"kind"`
	Data Details `json:"data"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Details *taggedDetails `json:"details,omitempty"`
	}{plain: plain(r)}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	if r.Details != nil {
		out.Details = &taggedDetails{Kind: r.Details.Kind(), Data: r.Details}
	}
	return json.Marshal(out)
}

type Report struct {
	Score           int           `json:"score"`
	Passed          int           `json:"passed"`
	Warnings        int           `json:"warnings"`
	Failed          int           `json:"failed"`
	Info            int           `json:"info"`
	Results         []Result      `json:"results"`
	Recommendations []string      `json:"recommendations"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
}
