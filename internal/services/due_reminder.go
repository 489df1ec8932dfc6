package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kyucards-backend/internal/logger"
	"kyucards-backend/internal/models"
	"kyucards-backend/internal/study"
)

const (
	defaultReminderInterval = time.Hour
	reminderParallelism     = 4
)

type ownerStore interface {
	ListOwners(ctx context.Context) ([]uuid.UUID, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Card, error)
}

// DueReminder periodically tells each card owner how many cards are ready.
// An owner is notified again only when their due count changes.
type DueReminder struct {
	store    ownerStore
	events   eventPublisher
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
	stopChan chan struct{}

	mu       sync.Mutex
	lastSent map[uuid.UUID]int
}

func NewDueReminder(store ownerStore, events eventPublisher, interval time.Duration, log *logger.Logger) *DueReminder {
	if interval <= 0 {
		interval = defaultReminderInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DueReminder{
		store:    store,
		events:   events,
		interval: interval,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
		lastSent: make(map[uuid.UUID]int),
	}
}

func (r *DueReminder) Start() {
	if r.store == nil || r.events == nil {
		return
	}
	go r.loop()
	r.log.Info("Due reminder started", "interval", r.interval.String())
}

func (r *DueReminder) Stop() {
	select {
	case <-r.stopChan:
		return
	default:
		close(r.stopChan)
	}
}

func (r *DueReminder) loop() {
	// Run on startup as well as by interval.
	r.runOnce(context.Background())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.runOnce(context.Background())
		}
	}
}

// runOnce checks every owner and returns how many were notified.
func (r *DueReminder) runOnce(ctx context.Context) int {
	owners, err := r.store.ListOwners(ctx)
	if err != nil {
		r.log.Warn("due reminder: failed to list owners", "error", err)
		return 0
	}

	now := r.now().UTC()
	var (
		mu       sync.Mutex
		notified int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reminderParallelism)
	for _, owner := range owners {
		owner := owner
		g.Go(func() error {
			cards, err := r.store.List(gctx, owner)
			if err != nil {
				r.log.Warn("due reminder: failed to load cards", "user_id", owner, "error", err)
				return nil
			}
			summary := study.Summarize(cards, now)
			if !r.shouldNotify(owner, summary.Due) {
				return nil
			}
			r.events.Publish(gctx, owner, models.EventCardsDue, models.CardsDueEvent{
				Due:          summary.Due,
				NextReviewAt: summary.NextReviewAt,
			})
			mu.Lock()
			notified++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return notified
}

func (r *DueReminder) shouldNotify(owner uuid.UUID, due int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, seen := r.lastSent[owner]
	r.lastSent[owner] = due
	if due == 0 {
		return false
	}
	return !seen || last != due
}
