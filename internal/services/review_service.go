package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"kyucards-backend/internal/logger"
	"kyucards-backend/internal/models"
	"kyucards-backend/internal/repository"
	"kyucards-backend/internal/study"
)

const minCleanupInterval = time.Minute

type reviewEntry struct {
	session  *study.Session
	userID   uuid.UUID
	lastUsed time.Time
}

// ReviewService keeps the open review sessions. Sessions live in memory and
// are closed after ttl without activity.
type ReviewService struct {
	store  CardStore
	events eventPublisher
	log    *logger.Logger
	ttl    time.Duration
	now    func() time.Time
	tick   time.Duration

	mu       sync.Mutex
	sessions map[string]*reviewEntry
	stopChan chan struct{}
}

func NewReviewService(store CardStore, events eventPublisher, ttl time.Duration, log *logger.Logger) *ReviewService {
	if log == nil {
		log = logger.Nop()
	}
	return &ReviewService{
		store:    store,
		events:   events,
		log:      log,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*reviewEntry),
		stopChan: make(chan struct{}),
	}
}

// Start opens a session over the user's due cards.
func (s *ReviewService) Start(ctx context.Context, userID uuid.UUID) (study.View, error) {
	if err := requireOwner(userID); err != nil {
		return study.View{}, err
	}
	cards, err := s.store.List(ctx, userID)
	if err != nil {
		return study.View{}, fmt.Errorf("load cards: %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return study.View{}, fmt.Errorf("generate session id: %w", err)
	}

	session := study.NewSession(cards, s.persister(userID, id), study.SessionOptions{
		ID:           id,
		TickInterval: s.tick,
		Now:          s.now,
	})

	s.mu.Lock()
	s.sessions[id] = &reviewEntry{session: session, userID: userID, lastUsed: s.now()}
	s.mu.Unlock()

	s.log.Debug("review session started", "session_id", id, "user_id", userID)
	return session.View(), nil
}

func (s *ReviewService) View(userID uuid.UUID, id string) (study.View, error) {
	session, err := s.lookup(userID, id)
	if err != nil {
		return study.View{}, err
	}
	return session.View(), nil
}

func (s *ReviewService) Reveal(userID uuid.UUID, id string) (study.View, error) {
	session, err := s.lookup(userID, id)
	if err != nil {
		return study.View{}, err
	}
	v, err := session.Reveal()
	return v, sessionError(err)
}

// Rate records a rating for the revealed card. The store write is not tied
// to the caller's cancellation.
func (s *ReviewService) Rate(ctx context.Context, userID uuid.UUID, id string, score int) (study.View, error) {
	session, err := s.lookup(userID, id)
	if err != nil {
		return study.View{}, err
	}

	v, err := session.Rate(context.WithoutCancel(ctx), score)
	if err != nil {
		return v, sessionError(err)
	}
	if v.Phase == study.PhaseComplete {
		s.publish(ctx, userID, models.EventReviewComplete, models.ReviewCompleteEvent{
			SessionID: id,
			Reviewed:  v.Reviewed,
		})
	}
	return v, nil
}

func (s *ReviewService) Next(userID uuid.UUID, id string) (study.View, error) {
	session, err := s.lookup(userID, id)
	if err != nil {
		return study.View{}, err
	}
	v, err := session.Next()
	return v, sessionError(err)
}

func (s *ReviewService) Previous(userID uuid.UUID, id string) (study.View, error) {
	session, err := s.lookup(userID, id)
	if err != nil {
		return study.View{}, err
	}
	v, err := session.Previous()
	return v, sessionError(err)
}

// Close ends a session and forgets it.
func (s *ReviewService) Close(userID uuid.UUID, id string) (study.View, error) {
	session, err := s.lookup(userID, id)
	if err != nil {
		return study.View{}, err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	return session.Close(), nil
}

// RefreshUser reloads the card set of every open session owned by userID.
// A session that is mid-rating takes the new set once the rating is saved.
// Complete and closed sessions are left alone.
func (s *ReviewService) RefreshUser(ctx context.Context, userID uuid.UUID) {
	s.mu.Lock()
	var open []*study.Session
	for _, e := range s.sessions {
		if e.userID == userID {
			open = append(open, e.session)
		}
	}
	s.mu.Unlock()

	if len(open) == 0 {
		return
	}

	cards, err := s.store.List(ctx, userID)
	if err != nil {
		s.log.Warn("failed to reload cards for open sessions", "user_id", userID, "error", err)
		return
	}
	for _, session := range open {
		if _, err := session.Refresh(cards); err != nil && !isSessionStateError(err) {
			s.log.Warn("failed to refresh session", "session_id", session.ID(), "error", err)
		}
	}
}

// StartCleanup closes sessions idle longer than the ttl until Stop is called.
func (s *ReviewService) StartCleanup() {
	if s.ttl <= 0 {
		return
	}
	interval := s.ttl / 2
	if interval < minCleanupInterval {
		interval = minCleanupInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.expire(s.now())
			}
		}
	}()
}

func (s *ReviewService) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		e.session.Close()
		delete(s.sessions, id)
	}
}

func (s *ReviewService) expire(now time.Time) int {
	s.mu.Lock()
	var stale []*reviewEntry
	for id, e := range s.sessions {
		if now.Sub(e.lastUsed) >= s.ttl {
			stale = append(stale, e)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.session.Close()
		s.log.Debug("review session expired", "session_id", e.session.ID(), "user_id", e.userID)
	}
	return len(stale)
}

func (s *ReviewService) lookup(userID uuid.UUID, id string) (*study.Session, error) {
	if err := requireOwner(userID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.userID != userID {
		return nil, &NotFoundError{Message: "Review session not found"}
	}
	e.lastUsed = s.now()
	return e.session, nil
}

// persister writes a rating through the store and announces it.
func (s *ReviewService) persister(userID uuid.UUID, sessionID string) study.Persister {
	return study.PersisterFunc(func(ctx context.Context, card models.Card, score int, out study.Outcome) (models.Card, error) {
		saved, err := s.store.Update(ctx, userID, card.ID, out.Patch())
		if err != nil {
			return models.Card{}, err
		}
		s.publish(ctx, userID, models.EventCardReviewed, models.CardReviewedEvent{
			SessionID:    sessionID,
			CardID:       card.ID,
			Score:        score,
			Mastery:      out.Mastery,
			IntervalDays: out.IntervalDays,
			NextReview:   out.NextReview,
		})
		return *saved, nil
	})
}

func (s *ReviewService) publish(ctx context.Context, userID uuid.UUID, event string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(ctx, userID, event, payload)
	}
}

func isSessionStateError(err error) bool {
	return errors.Is(err, study.ErrSessionComplete) ||
		errors.Is(err, study.ErrSessionClosed)
}

func sessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, study.ErrNotRevealed):
		return &ConflictError{Message: "Reveal the answer before rating", Err: err}
	case errors.Is(err, study.ErrRatingInFlight):
		return &ConflictError{Message: "A rating is still being saved", Err: err}
	case errors.Is(err, study.ErrSessionComplete):
		return &ConflictError{Message: "Review session is complete", Err: err}
	case errors.Is(err, study.ErrSessionClosed):
		return &ConflictError{Message: "Review session is closed", Err: err}
	case errors.Is(err, repository.ErrNotFound):
		return &NotFoundError{Message: "Card not found"}
	default:
		return err
	}
}
