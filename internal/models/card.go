package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is a kyu tier. Lower numbers are harder; Train marks untiered
// practice cards.
type Difficulty int

const (
	Kyu1 Difficulty = iota + 1
	Kyu2
	Kyu3
	Kyu4
	Kyu5
	Kyu6
	Kyu7
	Kyu8
	Train
)

// DefaultDifficulty is used when a draft does not name a tier.
const DefaultDifficulty = Kyu8

const trainName = "Train"

func (d Difficulty) IsValid() bool {
	return d >= Kyu1 && d <= Train
}

// Ordinal is the value used for sorting. Train sits past 8 kyu.
func (d Difficulty) Ordinal() int {
	return int(d)
}

func (d Difficulty) String() string {
	switch {
	case d == Train:
		return trainName
	case d.IsValid():
		return fmt.Sprintf("%d kyu", int(d))
	default:
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
}

// ParseDifficulty accepts "3", "3 kyu" and "Train" (case-insensitive).
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, trainName) {
		return Train, nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(s), "kyu"))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid difficulty %q", s)
	}
	d := Difficulty(n)
	if d < Kyu1 || d > Kyu8 {
		return 0, fmt.Errorf("invalid difficulty %q", s)
	}
	return d, nil
}

// MarshalJSON writes kyu tiers as numbers and the practice tier as "Train".
func (d Difficulty) MarshalJSON() ([]byte, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("invalid difficulty: %d", int(d))
	}
	if d == Train {
		return json.Marshal(trainName)
	}
	return json.Marshal(int(d))
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		v := Difficulty(n)
		if v < Kyu1 || v > Kyu8 {
			return fmt.Errorf("invalid difficulty: %d", n)
		}
		*d = v
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid difficulty: %s", data)
	}
	v, err := ParseDifficulty(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

type Topic string

const (
	TopicAlgorithms         Topic = "Algorithms"
	TopicDataStructures     Topic = "Data Structures"
	TopicMathematics        Topic = "Mathematics"
	TopicStringManipulation Topic = "String Manipulation"
	TopicArrays             Topic = "Arrays"
	TopicRegularExpressions Topic = "Regular Expressions"
	TopicFunctional         Topic = "Functional Programming"
	TopicObjectOriented     Topic = "Object-oriented Programming"
)

// Topics lists every topic in display order.
var Topics = []Topic{
	TopicAlgorithms,
	TopicDataStructures,
	TopicMathematics,
	TopicStringManipulation,
	TopicArrays,
	TopicRegularExpressions,
	TopicFunctional,
	TopicObjectOriented,
}

func (t Topic) IsValid() bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTopic matches a topic name case-insensitively.
func ParseTopic(s string) (Topic, bool) {
	s = strings.TrimSpace(s)
	for _, known := range Topics {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

type Card struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"` // derived from Title by the store
	Description  string     `json:"description"`
	Solution     string     `json:"solution"`
	Explanation  string     `json:"explanation"`
	TestCases    string     `json:"test_cases"`
	Difficulty   Difficulty `json:"difficulty"`
	Topics       []Topic    `json:"topics"`
	Mastery      int        `json:"mastery"` // 0-100
	LastReviewed *time.Time `json:"last_reviewed"`
	NextReview   *time.Time `json:"next_review"`
	Created      time.Time  `json:"created"`
	Updated      time.Time  `json:"updated"`
}

// Clone returns a copy that shares no slices or pointers with c.
func (c Card) Clone() Card {
	out := c
	if c.Topics != nil {
		out.Topics = append([]Topic(nil), c.Topics...)
	}
	if c.LastReviewed != nil {
		v := *c.LastReviewed
		out.LastReviewed = &v
	}
	if c.NextReview != nil {
		v := *c.NextReview
		out.NextReview = &v
	}
	return out
}

// HasTopic reports whether t is among the card's topics.
func (c Card) HasTopic(t Topic) bool {
	for _, ct := range c.Topics {
		if ct == t {
			return true
		}
	}
	return false
}

// CardDraft is the editor input for a new card.
type CardDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Solution    string     `json:"solution"`
	Explanation string     `json:"explanation"`
	TestCases   string     `json:"test_cases"`
	Difficulty  Difficulty `json:"difficulty"`
	Topics      []Topic    `json:"topics"`
}

// CardPatch is a partial update. Nil fields are left unchanged.
type CardPatch struct {
	Title        *string     `json:"title,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Solution     *string     `json:"solution,omitempty"`
	Explanation  *string     `json:"explanation,omitempty"`
	TestCases    *string     `json:"test_cases,omitempty"`
	Difficulty   *Difficulty `json:"difficulty,omitempty"`
	Topics       []Topic     `json:"topics,omitempty"`
	Mastery      *int        `json:"-"`
	LastReviewed *time.Time  `json:"-"`
	NextReview   *time.Time  `json:"-"`
}

// Apply merges p into c. The caller refreshes Updated.
func (p CardPatch) Apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Solution != nil {
		c.Solution = *p.Solution
	}
	if p.Explanation != nil {
		c.Explanation = *p.Explanation
	}
	if p.TestCases != nil {
		c.TestCases = *p.TestCases
	}
	if p.Difficulty != nil {
		c.Difficulty = *p.Difficulty
	}
	if p.Topics != nil {
		c.Topics = append([]Topic(nil), p.Topics...)
	}
	if p.Mastery != nil {
		c.Mastery = *p.Mastery
	}
	if p.LastReviewed != nil {
		v := *p.LastReviewed
		c.LastReviewed = &v
	}
	if p.NextReview != nil {
		v := *p.NextReview
		c.NextReview = &v
	}
}

// DeckSummary backs the "N cards total, M ready for review" header.
type DeckSummary struct {
	Total        int        `json:"total"`
	Due          int        `json:"due"`
	NextReviewAt *time.Time `json:"next_review_at"`
}
