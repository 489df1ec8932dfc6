package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"kyucards-backend/internal/database"
	"kyucards-backend/internal/models"
)

func newLocalRepo(t *testing.T) *LocalCardRepo {
	t.Helper()
	db, err := database.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	repo := NewLocalCardRepo(db)
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	if err := repo.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func draft(title string) models.CardDraft {
	return models.CardDraft{
		Title:       title,
		Description: "describe " + title,
		Solution:    "solve " + title,
		Difficulty:  models.Kyu6,
		Topics:      []models.Topic{models.TopicStringManipulation, models.TopicAlgorithms},
	}
}

func TestLocalCardRepo_CreateAndGet(t *testing.T) {
	repo := newLocalRepo(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := repo.Create(ctx, owner, draft("Two Sum"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Mastery != 0 || created.LastReviewed != nil || created.NextReview != nil {
		t.Fatalf("new card should start unreviewed: %+v", created)
	}

	got, err := repo.Get(ctx, owner, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Two Sum" || got.Slug != "two-sum" || got.Difficulty != models.Kyu6 {
		t.Fatalf("unexpected card: %+v", got)
	}
	if len(got.Topics) != 2 || got.Topics[0] != models.TopicStringManipulation {
		t.Fatalf("topics did not round-trip in order: %v", got.Topics)
	}

	if _, err := repo.Get(ctx, uuid.New(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
}

func TestLocalCardRepo_ListNewestFirst(t *testing.T) {
	repo := newLocalRepo(t)
	ctx := context.Background()
	owner := uuid.New()

	for _, title := range []string{"first", "second", "third"} {
		if _, err := repo.Create(ctx, owner, draft(title)); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	if _, err := repo.Create(ctx, uuid.New(), draft("someone else")); err != nil {
		t.Fatalf("create: %v", err)
	}

	cards, err := repo.List(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(cards))
	}
	if cards[0].Title != "third" || cards[2].Title != "first" {
		t.Fatalf("expected newest first, got %q..%q", cards[0].Title, cards[2].Title)
	}

	owners, err := repo.ListOwners(ctx)
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("expected 2 owners, got %v", owners)
	}
}

func TestLocalCardRepo_UpdateMergesPatch(t *testing.T) {
	repo := newLocalRepo(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := repo.Create(ctx, owner, draft("Two Sum"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mastery := 30
	reviewed := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	next := reviewed.AddDate(0, 0, 3)
	title := "Two Sum II"
	updated, err := repo.Update(ctx, owner, created.ID, models.CardPatch{
		Title:        &title,
		Mastery:      &mastery,
		LastReviewed: &reviewed,
		NextReview:   &next,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Updated.After(created.Updated) {
		t.Fatalf("expected updated timestamp to move forward")
	}

	got, err := repo.Get(ctx, owner, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != title || got.Slug != "two-sum-ii" || got.Mastery != 30 || got.Solution != "solve Two Sum" {
		t.Fatalf("unexpected merged card: %+v", got)
	}
	if got.NextReview == nil || !got.NextReview.Equal(next) {
		t.Fatalf("expected next review %v, got %v", next, got.NextReview)
	}

	if _, err := repo.Update(ctx, owner, uuid.New(), models.CardPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalCardRepo_Delete(t *testing.T) {
	repo := newLocalRepo(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := repo.Create(ctx, owner, draft("gone"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(ctx, uuid.New(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
	if err := repo.Delete(ctx, owner, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, owner, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
