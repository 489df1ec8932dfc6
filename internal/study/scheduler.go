// Package study holds the review core: the scheduling rule, the filter and
// sort engine over a card set, and the review session state machine.
package study

import (
	"time"

	"kyucards-backend/internal/models"
)

const (
	MinMastery = 0
	MaxMastery = 100
)

// Ratings offered by the review screen. Any int is accepted by ApplyReview.
const (
	ScoreStillHard = -5
	ScoreGotIt     = 10
)

// Outcome is the result of applying one rating to a card.
type Outcome struct {
	Mastery      int
	WasCorrect   bool
	IntervalDays int
	LastReviewed time.Time
	NextReview   time.Time
}

// Patch converts the outcome into the store update for a reviewed card.
func (o Outcome) Patch() models.CardPatch {
	mastery := o.Mastery
	last := o.LastReviewed
	next := o.NextReview
	return models.CardPatch{
		Mastery:      &mastery,
		LastReviewed: &last,
		NextReview:   &next,
	}
}

// ApplyReview computes the new mastery and review timestamps for a rating.
// It never fails and ignores topics and difficulty.
func ApplyReview(card models.Card, score int, now time.Time) Outcome {
	mastery := AddMastery(card.Mastery, score)
	correct := score > 0
	days := IntervalDays(mastery, correct)
	return Outcome{
		Mastery:      mastery,
		WasCorrect:   correct,
		IntervalDays: days,
		LastReviewed: now,
		NextReview:   now.AddDate(0, 0, days),
	}
}

// AddMastery returns clamp(mastery+score, 0, 100) without overflowing.
func AddMastery(mastery, score int) int {
	m := ClampMastery(mastery)
	switch {
	case score > MaxMastery-m:
		return MaxMastery
	case score < MinMastery-m:
		return MinMastery
	default:
		return m + score
	}
}

func ClampMastery(m int) int {
	if m < MinMastery {
		return MinMastery
	}
	if m > MaxMastery {
		return MaxMastery
	}
	return m
}

// IntervalDays picks the gap before the next review from the mastery after
// the rating. A miss always comes back the next day.
func IntervalDays(mastery int, wasCorrect bool) int {
	switch {
	case !wasCorrect:
		return 1
	case mastery < 25:
		return 1
	case mastery < 50:
		return 3
	case mastery < 75:
		return 7
	case mastery < 90:
		return 14
	default:
		return 30
	}
}
