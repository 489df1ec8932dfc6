package models

import (
	"time"

	"github.com/google/uuid"
)

// WebSocket message types
const (
	EventCardCreated    = "card_created"
	EventCardUpdated    = "card_updated"
	EventCardDeleted    = "card_deleted"
	EventCardReviewed   = "card_reviewed"
	EventReviewComplete = "review_complete"
	EventCardsDue       = "cards_due"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type CardDeletedEvent struct {
	CardID uuid.UUID `json:"card_id"`
}

type CardReviewedEvent struct {
	SessionID    string    `json:"session_id"`
	CardID       uuid.UUID `json:"card_id"`
	Score        int       `json:"score"`
	Mastery      int       `json:"mastery"`
	IntervalDays int       `json:"interval_days"`
	NextReview   time.Time `json:"next_review"`
}

type ReviewCompleteEvent struct {
	SessionID string `json:"session_id"`
	Reviewed  int    `json:"reviewed"`
}

type CardsDueEvent struct {
	Due          int        `json:"due"`
	NextReviewAt *time.Time `json:"next_review_at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
