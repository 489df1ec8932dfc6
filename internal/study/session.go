package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kyucards-backend/internal/models"
)

type Phase string

const (
	PhasePresenting Phase = "presenting"
	PhaseRevealed   Phase = "revealed"
	PhaseComplete   Phase = "complete"
)

const CompleteMessage = "All caught up! You've reviewed all available flashcards. Come back later for more!"

var (
	ErrNotRevealed     = errors.New("study: card must be revealed before rating")
	ErrRatingInFlight  = errors.New("study: a rating is still being saved")
	ErrSessionComplete = errors.New("study: session is complete")
	ErrSessionClosed   = errors.New("study: session is closed")
)

// Persister stores a rating and returns the card as the store now holds it.
type Persister interface {
	SaveReview(ctx context.Context, card models.Card, score int, out Outcome) (models.Card, error)
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, card models.Card, score int, out Outcome) (models.Card, error)

func (f PersisterFunc) SaveReview(ctx context.Context, card models.Card, score int, out Outcome) (models.Card, error) {
	return f(ctx, card, score, out)
}

type SessionOptions struct {
	ID           string
	TickInterval time.Duration    // zero → one second
	Now          func() time.Time // nil → time.Now
}

// View is a snapshot of a session for display. Solution, explanation and
// test cases stay hidden until the card is revealed.
type View struct {
	SessionID      string       `json:"session_id"`
	Phase          Phase        `json:"phase"`
	Index          int          `json:"index"`
	Remaining      int          `json:"remaining"`
	Card           *models.Card `json:"card,omitempty"`
	ElapsedSeconds int64        `json:"elapsed_seconds"`
	Reviewed       int          `json:"reviewed"`
	Closed         bool         `json:"closed"`
	Message        string       `json:"message,omitempty"`
}

// Session walks the due subset of a card set. The due subset is recomputed
// when the session opens, after every saved rating and on Refresh.
type Session struct {
	mu        sync.Mutex
	id        string
	persister Persister
	now       func() time.Time
	tick      time.Duration

	cards    []models.Card
	due      []models.Card
	index    int
	phase    Phase
	rating   bool
	closed   bool
	reviewed int
	timer    *elapsedTimer

	// pending holds a card set that arrived through Refresh while a rating
	// was in flight. It is applied when the rating finishes.
	pending    []models.Card
	hasPending bool
}

// NewSession copies cards into the session and presents the first due card,
// or completes immediately when nothing is due.
func NewSession(cards []models.Card, persister Persister, opts SessionOptions) *Session {
	s := &Session{
		id:        opts.ID,
		persister: persister,
		now:       opts.Now,
		tick:      opts.TickInterval,
		cards:     cloneCards(cards),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
	if len(s.due) == 0 {
		s.completeLocked()
	} else {
		s.presentLocked()
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Reveal shows the answer and freezes the elapsed timer.
func (s *Session) Reveal() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkActiveLocked(); err != nil {
		return s.viewLocked(), err
	}
	if s.phase == PhasePresenting {
		s.phase = PhaseRevealed
		s.timer.Stop()
	}
	return s.viewLocked(), nil
}

// Rate schedules the current card and saves it. The lock is released while
// the persister runs; the in-flight flag keeps a second rating or a
// navigation from slipping in. On a failed save the card stays revealed.
func (s *Session) Rate(ctx context.Context, score int) (View, error) {
	card, out, err := s.beginRate(score)
	if err != nil {
		return s.View(), err
	}

	saved, err := s.persister.SaveReview(ctx, card, score, out)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rating = false
	pending, hasPending := s.pending, s.hasPending
	s.pending, s.hasPending = nil, false

	if err != nil {
		if hasPending && !s.closed {
			s.refreshLocked(pending)
		}
		return s.viewLocked(), fmt.Errorf("save review for card %s: %w", card.ID, err)
	}
	if saved.ID == uuid.Nil {
		saved = card
		out.Patch().Apply(&saved)
	}
	s.reviewed++
	if hasPending {
		s.cards = pending
	}
	s.replaceLocked(saved)
	if s.closed {
		return s.viewLocked(), nil
	}

	s.recomputeLocked()
	if len(s.due) == 0 {
		s.completeLocked()
		return s.viewLocked(), nil
	}
	if s.index >= len(s.due) {
		s.index = 0
	}
	s.presentLocked()
	return s.viewLocked(), nil
}

func (s *Session) beginRate(score int) (models.Card, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkActiveLocked(); err != nil {
		return models.Card{}, Outcome{}, err
	}
	if s.rating {
		return models.Card{}, Outcome{}, ErrRatingInFlight
	}
	if s.phase != PhaseRevealed {
		return models.Card{}, Outcome{}, ErrNotRevealed
	}
	card := s.due[s.index].Clone()
	s.rating = true
	return card, ApplyReview(card, score, s.now()), nil
}

// Next moves to the following due card. At the last card it does nothing.
func (s *Session) Next() (View, error) {
	return s.move(1)
}

// Previous moves to the preceding due card. At the first card it does
// nothing.
func (s *Session) Previous() (View, error) {
	return s.move(-1)
}

func (s *Session) move(step int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkActiveLocked(); err != nil {
		return s.viewLocked(), err
	}
	if s.rating {
		return s.viewLocked(), ErrRatingInFlight
	}
	target := s.index + step
	if target < 0 || target >= len(s.due) {
		return s.viewLocked(), nil
	}
	s.index = target
	s.presentLocked()
	return s.viewLocked(), nil
}

// Refresh swaps in a new card set, for instance after an edit, and
// recomputes the due subset. The current card keeps its place when it is
// still due. While a rating is in flight the set is held and applied once
// the rating finishes, with the saved card taking precedence.
func (s *Session) Refresh(cards []models.Card) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkActiveLocked(); err != nil {
		return s.viewLocked(), err
	}
	if s.rating {
		s.pending, s.hasPending = cloneCards(cards), true
		return s.viewLocked(), nil
	}
	s.refreshLocked(cloneCards(cards))
	return s.viewLocked(), nil
}

func (s *Session) refreshLocked(cards []models.Card) {
	current := s.due[s.index].ID
	s.cards = cards
	s.recomputeLocked()
	if len(s.due) == 0 {
		s.completeLocked()
		return
	}
	for i, c := range s.due {
		if c.ID == current {
			s.index = i
			return
		}
	}
	if s.index >= len(s.due) {
		s.index = 0
	}
	s.presentLocked()
}

// Close stops the timer. Ratings already saved stay saved and a rating in
// flight is not cancelled.
func (s *Session) Close() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	return s.viewLocked()
}

func (s *Session) checkActiveLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.phase == PhaseComplete {
		return ErrSessionComplete
	}
	return nil
}

func (s *Session) recomputeLocked() {
	s.due = Due(s.cards, s.now())
}

func (s *Session) replaceLocked(card models.Card) {
	for i := range s.cards {
		if s.cards[i].ID == card.ID {
			s.cards[i] = card.Clone()
			return
		}
	}
}

func (s *Session) presentLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.phase = PhasePresenting
	s.timer = startElapsedTimer(s.tick)
}

func (s *Session) completeLocked() {
	s.phase = PhaseComplete
	s.index = 0
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Session) viewLocked() View {
	v := View{
		SessionID: s.id,
		Phase:     s.phase,
		Index:     s.index,
		Remaining: len(s.due),
		Reviewed:  s.reviewed,
		Closed:    s.closed,
	}
	if s.timer != nil {
		v.ElapsedSeconds = s.timer.Elapsed()
	}
	if s.phase == PhaseComplete {
		v.Remaining = 0
		v.Message = CompleteMessage
		return v
	}
	card := s.due[s.index].Clone()
	if s.phase == PhasePresenting {
		card.Solution = ""
		card.Explanation = ""
		card.TestCases = ""
	}
	v.Card = &card
	return v
}

func cloneCards(cards []models.Card) []models.Card {
	out := make([]models.Card, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}

// elapsedTimer counts ticks on its own goroutine until stopped. Once Stop
// returns the count no longer changes.
type elapsedTimer struct {
	mu      sync.Mutex
	ticks   int64
	stopped bool
	stop    chan struct{}
}

func startElapsedTimer(interval time.Duration) *elapsedTimer {
	t := &elapsedTimer{stop: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				if !t.stopped {
					t.ticks++
				}
				t.mu.Unlock()
			}
		}
	}()
	return t
}

func (t *elapsedTimer) Elapsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

func (t *elapsedTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}
