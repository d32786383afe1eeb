package health

import "math"

const maxHighRecommendations = 5

// Score is round(((passed + 0.5*warnings) / scored) * 100). Info results are
// not scored; with nothing scored the score is 100.
func Score(results []Result) int {
	var passed, warnings, scored float64
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusWarning:
			warnings++
		case StatusFail:
		default:
			continue
		}
		scored++
	}
	if scored == 0 {
		return 100
	}
	return int(math.Round((passed + 0.5*warnings) / scored * 100))
}

// Recommendations collects every recommendation of critical results plus
// the first five of high results, deduplicated, in order of appearance.
func Recommendations(results []Result) []string {
	out := []string{}
	seen := map[string]bool{}
	high := 0
	for _, r := range results {
		for _, rec := range r.Recommendations {
			if seen[rec] {
				continue
			}
			switch r.Priority {
			case PriorityCritical:
			case PriorityHigh:
				if high >= maxHighRecommendations {
					continue
				}
				high++
			default:
				continue
			}
			seen[rec] = true
			out = append(out, rec)
		}
	}
	return out
}

func summarize(report *Report) {
	for _, r := range report.Results {
		switch r.Status {
		case StatusPass:
			report.Passed++
		case StatusWarning:
			report.Warnings++
		case StatusFail:
			report.Failed++
		case StatusInfo:
			report.Info++
		}
	}
	report.Score = Score(report.Results)
	report.Recommendations = Recommendations(report.Results)
}
