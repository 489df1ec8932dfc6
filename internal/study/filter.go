package study

import (
	"sort"
	"strings"
	"time"

	"kyucards-backend/internal/models"
)

// Apply returns the cards that pass f, ordered by f's sort key. The input
// slice and its cards are left untouched.
func Apply(cards []models.Card, f models.Filters) []models.Card {
	out := make([]models.Card, 0, len(cards))
	query := strings.ToLower(strings.TrimSpace(f.SearchQuery))
	for _, c := range cards {
		if Matches(c, f.Difficulty, f.Topics, query) {
			out = append(out, c.Clone())
		}
	}
	Sort(out, f.SortBy, f.SortOrder)
	return out
}

// Matches ANDs the difficulty, topic and text predicates. query must already
// be lower-cased; an empty query matches everything.
func Matches(c models.Card, difficulty *models.Difficulty, topics []models.Topic, query string) bool {
	if difficulty != nil && c.Difficulty != *difficulty {
		return false
	}
	if len(topics) > 0 && !hasAnyTopic(c, topics) {
		return false
	}
	if query != "" && !matchesText(c, query) {
		return false
	}
	return true
}

func hasAnyTopic(c models.Card, topics []models.Topic) bool {
	for _, t := range topics {
		if c.HasTopic(t) {
			return true
		}
	}
	return false
}

func matchesText(c models.Card, query string) bool {
	fields := []string{c.Title, c.Description, c.Solution, c.Explanation}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	for _, t := range c.Topics {
		if strings.Contains(strings.ToLower(string(t)), query) {
			return true
		}
	}
	return false
}

// Sort orders cards in place. Unknown keys leave the order as is. Cards
// never reviewed go last when sorting by lastReviewed, whatever the order.
func Sort(cards []models.Card, key models.SortKey, order models.SortOrder) {
	var cmp func(a, b models.Card) int
	switch key {
	case models.SortByDifficulty:
		cmp = func(a, b models.Card) int { return a.Difficulty.Ordinal() - b.Difficulty.Ordinal() }
	case models.SortByMastery:
		cmp = func(a, b models.Card) int { return a.Mastery - b.Mastery }
	case models.SortByLastReviewed:
		cmp = compareLastReviewed
	default:
		return
	}
	desc := order == models.SortDesc

	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if key == models.SortByLastReviewed {
			if a.LastReviewed == nil || b.LastReviewed == nil {
				return a.LastReviewed != nil && b.LastReviewed == nil
			}
		}
		if desc {
			return cmp(a, b) > 0
		}
		return cmp(a, b) < 0
	})
}

func compareLastReviewed(a, b models.Card) int {
	return a.LastReviewed.Compare(*b.LastReviewed)
}

// IsDue reports whether the card has no scheduled review or the scheduled
// time has passed.
func IsDue(c models.Card, now time.Time) bool {
	return c.NextReview == nil || !c.NextReview.After(now)
}

// Due returns the due cards in input order.
func Due(cards []models.Card, now time.Time) []models.Card {
	out := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		if IsDue(c, now) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// NextReviewAt returns the earliest scheduled review still in the future,
// or nil when nothing is scheduled.
func NextReviewAt(cards []models.Card, now time.Time) *time.Time {
	var next *time.Time
	for _, c := range cards {
		if c.NextReview == nil || !c.NextReview.After(now) {
			continue
		}
		if next == nil || c.NextReview.Before(*next) {
			v := *c.NextReview
			next = &v
		}
	}
	return next
}

// Summarize computes the deck header counts.
func Summarize(cards []models.Card, now time.Time) models.DeckSummary {
	s := models.DeckSummary{Total: len(cards), NextReviewAt: NextReviewAt(cards, now)}
	for _, c := range cards {
		if IsDue(c, now) {
			s.Due++
		}
	}
	return s
}
