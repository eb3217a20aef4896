package matching

import (
	"fmt"
	"time"
)

// BatchReport aggregates independent per-claim match outcomes.
type BatchReport struct {
	Total             int
	Matched           int
	MatchRate         float64
	HighConfidence    int // >= 0.8
	MediumConfidence  int // 0.5 - 0.8
	LowConfidence     int // 0.2 - 0.5
	VeryLowConfidence int // < 0.2
	Recommendations   []string
}

// BuildReport classifies each result into confidence buckets and derives
// operator recommendations from the aggregate shape of the failures.
func BuildReport(results []MatchResult) BatchReport {
	report := BatchReport{Total: len(results)}
	if report.Total == 0 {
		return report
	}

	var timeMisses int
	for _, res := range results {
		if !res.Verified {
			if res.Closest != nil && res.Closest.TimeDiff > 0 {
				timeMisses++
			}
			continue
		}
		report.Matched++
		switch conf := res.Best.Confidence; {
		case conf >= 0.8:
			report.HighConfidence++
		case conf >= 0.5:
			report.MediumConfidence++
		case conf >= 0.2:
			report.LowConfidence++
		default:
			report.VeryLowConfidence++
		}
	}
	report.MatchRate = float64(report.Matched) / float64(report.Total)

	unmatched := report.Total - report.Matched
	if unmatched > 0 && clockDriftSuspected(results) {
		report.Recommendations = append(report.Recommendations,
			"high rate of time-window misses with amounts in tolerance, check the register clock for drift")
	}
	if report.MatchRate < 0.5 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("match rate %.0f%%, verify the POS feed covers the full claim window", report.MatchRate*100))
	}
	if report.VeryLowConfidence > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d matches with very low confidence, flag for manual review", report.VeryLowConfidence))
	}

	return report
}

// clockDriftSuspected reports whether most unmatched claims failed on time
// alone, with the amount inside tolerance. A consistent offset points at the
// register clock rather than at fabricated claims.
func clockDriftSuspected(results []MatchResult) bool {
	var unmatched, timeOnly int
	for _, res := range results {
		if res.Verified || res.Closest == nil {
			continue
		}
		unmatched++
		if res.Closest.TimeDiff > time.Minute && res.Closest.AmountDiff.InexactFloat64() < 1 {
			timeOnly++
		}
	}
	return unmatched > 0 && float64(timeOnly)/float64(unmatched) > 0.5
}
