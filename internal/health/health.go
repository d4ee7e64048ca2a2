// Package health derives a project's health score and status from its event
// ledger. Scoring is deterministic and side-effect free; callers persist the
// result.
package health

import (
	"math"
	"time"

	"pulse/internal/domain"
)

// Snapshot is the derived health state for a project.
type Snapshot struct {
	Score  int
	Status string
}

// Score recomputes the health snapshot from the full event list. Events may be
// in any order; the latest CHECKIN and FEEDBACK are selected by timestamp.
//
// Fixed formula: satisfaction 40%, confidence 30%, schedule 30%, with a
// 70-point neutral baseline when no feedback or check-in exists, minus 10 per
// open risk and 5 per flagged feedback, clamped to [0,100].
func Score(p domain.Project, events []domain.Event, now time.Time) Snapshot {
	var latestCheckin, latestFeedback *domain.Event
	openRisks := 0
	flaggedIssues := 0
	for i := range events {
		e := &events[i]
		switch e.Type {
		case domain.EventCheckin:
			if latestCheckin == nil || e.Timestamp > latestCheckin.Timestamp {
				latestCheckin = e
			}
		case domain.EventFeedback:
			if latestFeedback == nil || e.Timestamp > latestFeedback.Timestamp {
				latestFeedback = e
			}
			if e.FlagIssue != nil && *e.FlagIssue {
				flaggedIssues++
			}
		case domain.EventRisk:
			if e.IsOpenRisk() {
				openRisks++
			}
		}
	}

	clientSatisfaction := 70.0
	if latestFeedback != nil && latestFeedback.SatisfactionRating != nil {
		clientSatisfaction = float64(*latestFeedback.SatisfactionRating) / 5 * 100
	}
	employeeConfidence := 70.0
	if latestCheckin != nil && latestCheckin.ConfidenceLevel != nil {
		employeeConfidence = float64(*latestCheckin.ConfidenceLevel) / 5 * 100
	}

	scheduleScore := scheduleScore(p, now)
	riskPenalty := float64(openRisks*10 + flaggedIssues*5)
	baseScore := clientSatisfaction*0.4 + employeeConfidence*0.3 + scheduleScore*0.3
	finalScore := int(math.Round(baseScore - riskPenalty))
	if finalScore < 0 {
		finalScore = 0
	}
	if finalScore > 100 {
		finalScore = 100
	}

	return Snapshot{Score: finalScore, Status: StatusFor(finalScore)}
}

// scheduleScore compares expected progress (linear over the delivery window)
// against last known progress. Rounding happens only at expectedProgress.
func scheduleScore(p domain.Project, now time.Time) float64 {
	start, err1 := time.Parse(time.RFC3339, p.StartDate)
	end, err2 := time.Parse(time.RFC3339, p.EndDate)
	expectedProgress := 0
	if err1 == nil && err2 == nil {
		totalMs := end.Sub(start).Milliseconds()
		if totalMs > 0 {
			elapsedMs := now.Sub(start).Milliseconds()
			if elapsedMs < 0 {
				elapsedMs = 0
			}
			if elapsedMs > totalMs {
				elapsedMs = totalMs
			}
			expectedProgress = int(math.Round(float64(elapsedMs) / float64(totalMs) * 100))
		}
	}
	progress := 0
	if p.Progress != nil {
		progress = *p.Progress
	}
	scheduleLag := expectedProgress - progress
	if scheduleLag < 0 {
		scheduleLag = 0
	}
	score := 100 - scheduleLag
	if score < 0 {
		score = 0
	}
	return float64(score)
}

// StatusFor maps a health score to its status bucket. COMPLETED is never
// produced here.
func StatusFor(score int) string {
	switch {
	case score >= 80:
		return domain.StatusOnTrack
	case score >= 60:
		return domain.StatusAtRisk
	default:
		return domain.StatusCritical
	}
}
