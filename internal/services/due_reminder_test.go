package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"kyucards-backend/internal/models"
)

func TestDueReminder_NotifiesOwnersWithDueCards(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	busy, idle := uuid.New(), uuid.New()
	later := testNow.Add(72 * time.Hour)

	store.put(models.Card{UserID: busy, Title: "new"})
	store.put(models.Card{UserID: busy, Title: "scheduled", NextReview: &later})
	store.put(models.Card{UserID: idle, Title: "scheduled", NextReview: &later})

	r := NewDueReminder(store, pub, time.Minute, nil)
	r.now = func() time.Time { return testNow }

	if n := r.runOnce(context.Background()); n != 1 {
		t.Fatalf("expected one owner notified, got %d", n)
	}
	if len(pub.events) != 1 || pub.events[0].userID != busy || pub.events[0].typ != models.EventCardsDue {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
	ev := pub.events[0].payload.(models.CardsDueEvent)
	if ev.Due != 1 || ev.NextReviewAt == nil || !ev.NextReviewAt.Equal(later) {
		t.Fatalf("unexpected payload: %+v", ev)
	}
}

func TestDueReminder_RepeatsOnlyWhenCountChanges(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	owner := uuid.New()
	store.put(models.Card{UserID: owner, Title: "a"})

	r := NewDueReminder(store, pub, time.Minute, nil)
	r.now = func() time.Time { return testNow }

	r.runOnce(context.Background())
	if n := r.runOnce(context.Background()); n != 0 {
		t.Fatalf("expected no repeat for an unchanged count, got %d", n)
	}

	store.put(models.Card{UserID: owner, Title: "b"})
	if n := r.runOnce(context.Background()); n != 1 {
		t.Fatalf("expected a new notice after the count changed, got %d", n)
	}
}

func TestDueReminder_StopIsIdempotent(t *testing.T) {
	r := NewDueReminder(newMemStore(), &recordingPublisher{}, time.Hour, nil)
	r.Start()
	r.Stop()
	r.Stop()
}
