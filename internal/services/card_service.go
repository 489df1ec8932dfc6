package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kyucards-backend/internal/models"
	"kyucards-backend/internal/repository"
	"kyucards-backend/internal/study"
)

// CardStore is the durable card storage. repository.CardRepo and
// repository.LocalCardRepo both satisfy it.
type CardStore interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Card, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Card, error)
	Create(ctx context.Context, userID uuid.UUID, d models.CardDraft) (*models.Card, error)
	Update(ctx context.Context, userID, id uuid.UUID, p models.CardPatch) (*models.Card, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type eventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, eventType string, payload interface{})
}

type CardService struct {
	store     CardStore
	events    eventPublisher
	now       func() time.Time
	listeners []func(ctx context.Context, userID uuid.UUID)
}

func NewCardService(store CardStore, events eventPublisher) *CardService {
	return &CardService{store: store, events: events, now: time.Now}
}

// OnChange registers fn to run after any card of a user is created, edited
// or deleted.
func (s *CardService) OnChange(fn func(ctx context.Context, userID uuid.UUID)) {
	s.listeners = append(s.listeners, fn)
}

func (s *CardService) List(ctx context.Context, userID uuid.UUID, f models.Filters) ([]models.Card, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	cards, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return study.Apply(cards, f), nil
}

func (s *CardService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Card, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	card, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, storeError("get card", err)
	}
	return card, nil
}

func (s *CardService) Create(ctx context.Context, userID uuid.UUID, d models.CardDraft) (*models.Card, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	d.Title = strings.TrimSpace(d.Title)
	if d.Difficulty == 0 {
		d.Difficulty = models.DefaultDifficulty
	}

	fields := map[string]string{}
	if d.Title == "" {
		fields["title"] = "Title is required"
	}
	if strings.TrimSpace(d.Description) == "" {
		fields["description"] = "Description is required"
	}
	validateDifficulty(fields, d.Difficulty)
	validateTopics(fields, d.Topics)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	card, err := s.store.Create(ctx, userID, d)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}

	s.changed(ctx, userID, models.EventCardCreated, card)
	return card, nil
}

// Update applies an editor patch. Scheduling fields are owned by reviews
// and are ignored here.
func (s *CardService) Update(ctx context.Context, userID, id uuid.UUID, p models.CardPatch) (*models.Card, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	p.Mastery = nil
	p.LastReviewed = nil
	p.NextReview = nil

	fields := map[string]string{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		p.Title = &title
		if title == "" {
			fields["title"] = "Title is required"
		}
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		fields["description"] = "Description is required"
	}
	if p.Difficulty != nil {
		validateDifficulty(fields, *p.Difficulty)
	}
	if p.Topics != nil {
		validateTopics(fields, p.Topics)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	card, err := s.store.Update(ctx, userID, id, p)
	if err != nil {
		return nil, storeError("update card", err)
	}

	s.changed(ctx, userID, models.EventCardUpdated, card)
	return card, nil
}

func (s *CardService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := requireOwner(userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return storeError("delete card", err)
	}
	s.changed(ctx, userID, models.EventCardDeleted, models.CardDeletedEvent{CardID: id})
	return nil
}

// Due returns the cards ready for review, in stored order.
func (s *CardService) Due(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	cards, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return study.Due(cards, s.now()), nil
}

func (s *CardService) Summary(ctx context.Context, userID uuid.UUID) (models.DeckSummary, error) {
	if err := requireOwner(userID); err != nil {
		return models.DeckSummary{}, err
	}
	cards, err := s.store.List(ctx, userID)
	if err != nil {
		return models.DeckSummary{}, fmt.Errorf("list cards: %w", err)
	}
	return study.Summarize(cards, s.now()), nil
}

func (s *CardService) changed(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(ctx, userID, event, payload)
	}
	for _, fn := range s.listeners {
		fn(ctx, userID)
	}
}

func validateDifficulty(fields map[string]string, d models.Difficulty) {
	if !d.IsValid() {
		fields["difficulty"] = "Difficulty must be 1-8 kyu or Train"
	}
}

func validateTopics(fields map[string]string, topics []models.Topic) {
	if len(topics) == 0 {
		fields["topics"] = "At least one topic is required"
		return
	}
	for _, t := range topics {
		if !t.IsValid() {
			fields["topics"] = fmt.Sprintf("Unknown topic %q", string(t))
			return
		}
	}
}

func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Card not found"}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireOwner rejects calls that reached a service without an
// authenticated user.
func requireOwner(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return &UnauthorizedError{Message: "Authentication required"}
	}
	return nil
}
