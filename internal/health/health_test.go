package health_test

import (
	"testing"
	"time"

	"pulse/internal/domain"
	"pulse/internal/health"
)

func midProject(progress *int) domain.Project {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(100 * 24 * time.Hour)
	return domain.Project{
		ID:        "p1",
		Name:      "Rollout",
		ClientID:  "client-1",
		StartDate: start.Format(time.RFC3339),
		EndDate:   end.Format(time.RFC3339),
		Progress:  progress,
	}
}

func TestScoreNoEventsHalfwayBehind(t *testing.T) {
	zero := 0
	p := midProject(&zero)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(50 * 24 * time.Hour)
	snap := health.Score(p, nil, now)
	// 70*0.4 + 70*0.3 + 50*0.3 = 64
	if snap.Score != 64 {
		t.Fatalf("score = %d, want 64", snap.Score)
	}
	if snap.Status != domain.StatusAtRisk {
		t.Fatalf("status = %s, want %s", snap.Status, domain.StatusAtRisk)
	}
}

func TestScoreOpenRiskAndFlaggedFeedback(t *testing.T) {
	zero := 0
	p := midProject(&zero)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(50 * 24 * time.Hour)
	flag := true
	open := domain.RiskOpen
	events := []domain.Event{
		{ID: "e1", Type: domain.EventRisk, Timestamp: "2024-01-10T00:00:00Z", RiskStatus: &open},
		{ID: "e2", Type: domain.EventFeedback, Timestamp: "2024-01-11T00:00:00Z", FlagIssue: &flag},
	}
	snap := health.Score(p, events, now)
	// 64 base minus 10 (open risk) minus 5 (flagged feedback)
	if snap.Score != 49 {
		t.Fatalf("score = %d, want 49", snap.Score)
	}
	if snap.Status != domain.StatusCritical {
		t.Fatalf("status = %s, want %s", snap.Status, domain.StatusCritical)
	}
}

func TestScorePerfect(t *testing.T) {
	hundred := 100
	p := midProject(&hundred)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(50 * 24 * time.Hour)
	five := 5
	events := []domain.Event{
		{ID: "e1", Type: domain.EventFeedback, Timestamp: "2024-01-11T00:00:00Z", SatisfactionRating: &five},
		{ID: "e2", Type: domain.EventCheckin, Timestamp: "2024-01-12T00:00:00Z", ConfidenceLevel: &five},
	}
	snap := health.Score(p, events, now)
	if snap.Score != 100 {
		t.Fatalf("score = %d, want 100", snap.Score)
	}
	if snap.Status != domain.StatusOnTrack {
		t.Fatalf("status = %s, want %s", snap.Status, domain.StatusOnTrack)
	}
}

func TestScoreUsesLatestFeedbackOnly(t *testing.T) {
	zero := 0
	p := midProject(&zero)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(50 * 24 * time.Hour)
	one, five := 1, 5
	events := []domain.Event{
		{ID: "old", Type: domain.EventFeedback, Timestamp: "2024-01-05T00:00:00Z", SatisfactionRating: &five},
		{ID: "new", Type: domain.EventFeedback, Timestamp: "2024-01-20T00:00:00Z", SatisfactionRating: &one},
	}
	snap := health.Score(p, events, now)
	// (1/5)*100*0.4 + 70*0.3 + 50*0.3 = 8 + 21 + 15 = 44
	if snap.Score != 44 {
		t.Fatalf("score = %d, want 44", snap.Score)
	}
}

func TestScoreResolvedRiskCarriesNoPenalty(t *testing.T) {
	zero := 0
	p := midProject(&zero)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(50 * 24 * time.Hour)
	resolved := domain.RiskResolved
	events := []domain.Event{
		{ID: "r1", Type: domain.EventRisk, Timestamp: "2024-01-10T00:00:00Z", RiskStatus: &resolved},
	}
	snap := health.Score(p, events, now)
	if snap.Score != 64 {
		t.Fatalf("score = %d, want 64", snap.Score)
	}
}

func TestScoreClampsAtZero(t *testing.T) {
	zero := 0
	p := midProject(&zero)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(100 * 24 * time.Hour)
	open := domain.RiskOpen
	one := 1
	var events []domain.Event
	for i := 0; i < 6; i++ {
		events = append(events, domain.Event{Type: domain.EventRisk, Timestamp: "2024-02-01T00:00:00Z", RiskStatus: &open})
	}
	events = append(events, domain.Event{Type: domain.EventFeedback, Timestamp: "2024-02-02T00:00:00Z", SatisfactionRating: &one})
	snap := health.Score(p, events, now)
	if snap.Score != 0 {
		t.Fatalf("score = %d, want 0", snap.Score)
	}
	if snap.Status != domain.StatusCritical {
		t.Fatalf("status = %s, want %s", snap.Status, domain.StatusCritical)
	}
}

func TestScoreAheadOfScheduleNotPenalized(t *testing.T) {
	ninety := 90
	p := midProject(&ninety)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(50 * 24 * time.Hour)
	snap := health.Score(p, nil, now)
	// schedule full marks: 70*0.4 + 70*0.3 + 100*0.3 = 79
	if snap.Score != 79 {
		t.Fatalf("score = %d, want 79", snap.Score)
	}
	if snap.Status != domain.StatusAtRisk {
		t.Fatalf("status = %s, want %s", snap.Status, domain.StatusAtRisk)
	}
}

func TestStatusThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{100, domain.StatusOnTrack},
		{80, domain.StatusOnTrack},
		{79, domain.StatusAtRisk},
		{60, domain.StatusAtRisk},
		{59, domain.StatusCritical},
		{0, domain.StatusCritical},
	}
	for _, tc := range cases {
		if got := health.StatusFor(tc.score); got != tc.want {
			t.Errorf("StatusFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
