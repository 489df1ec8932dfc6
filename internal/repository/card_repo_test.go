package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kyucards-backend/internal/models"
)

// These tests cover the Postgres mapping with fakes for the pgx surface.
// Row locking in Update needs a live server; the read-merge-write flow it
// guards is exercised end to end through LocalCardRepo.

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *[]string:
			*p = r.values[i].([]string)
		case **time.Time:
			*p = r.values[i].(*time.Time)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type queryCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	rows    []pgx.Row
	tag     pgconn.CommandTag
	tx      *fakeTx
	queries []queryCall
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, queryCall{sql, args})
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, queryCall{sql, args})
	return f.tag, nil
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return f.tx, nil
}

// fakeTx implements the transaction methods Update calls.
type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	committed  bool
	rolledBack bool
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func newFakeDB() *fakeDB {
	db := &fakeDB{}
	db.tx = &fakeTx{db: db}
	return db
}

func storedRow(c models.Card) fakeRow {
	return fakeRow{values: []any{
		c.ID, c.UserID, c.Title, c.Slug, c.Description, c.Solution, c.Explanation, c.TestCases,
		int(c.Difficulty), []string{"Arrays", "Mathematics"}, c.Mastery, c.LastReviewed, c.NextReview, c.Created, c.Updated,
	}}
}

func TestTopicConversionsKeepOrder(t *testing.T) {
	topics := []models.Topic{models.TopicRegularExpressions, models.TopicArrays, models.TopicAlgorithms}

	raw := topicStrings(topics)
	want := []string{"Regular Expressions", "Arrays", "Algorithms"}
	if len(raw) != len(want) {
		t.Fatalf("expected %v, got %v", want, raw)
	}
	for i := range want {
		if raw[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], raw[i])
		}
	}

	back := toTopics(raw)
	for i := range topics {
		if back[i] != topics[i] {
			t.Errorf("position %d: expected %q, got %q", i, topics[i], back[i])
		}
	}

	if got := topicStrings(nil); got == nil || len(got) != 0 {
		t.Errorf("expected an empty, non-nil slice for the topics column, got %#v", got)
	}
}

func TestScanCard(t *testing.T) {
	reviewed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	next := reviewed.AddDate(0, 0, 7)
	in := models.Card{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Title:        "Two Sum",
		Slug:         "two-sum",
		Difficulty:   models.Train,
		Mastery:      55,
		LastReviewed: &reviewed,
		NextReview:   &next,
	}

	c, err := scanCard(storedRow(in))
	if err != nil {
		t.Fatalf("scanCard: %v", err)
	}
	if c.Difficulty != models.Train || c.Mastery != 55 || c.Slug != "two-sum" {
		t.Fatalf("unexpected card: %+v", c)
	}
	if len(c.Topics) != 2 || c.Topics[0] != models.TopicArrays || c.Topics[1] != models.TopicMathematics {
		t.Fatalf("unexpected topics: %v", c.Topics)
	}
	if c.NextReview == nil || !c.NextReview.Equal(next) {
		t.Fatalf("expected next review %v, got %v", next, c.NextReview)
	}

	unreviewed := in
	unreviewed.LastReviewed, unreviewed.NextReview = nil, nil
	c, err = scanCard(storedRow(unreviewed))
	if err != nil {
		t.Fatalf("scanCard: %v", err)
	}
	if c.LastReviewed != nil || c.NextReview != nil {
		t.Fatalf("expected nil review times, got %v %v", c.LastReviewed, c.NextReview)
	}
}

func TestCardRepo_GetNotFound(t *testing.T) {
	db := newFakeDB()
	db.rows = []pgx.Row{fakeRow{err: pgx.ErrNoRows}}
	repo := &CardRepo{db: db}

	if _, err := repo.Get(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	boom := errors.New("connection reset")
	db.rows = []pgx.Row{fakeRow{err: boom}}
	if _, err := repo.Get(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, boom) {
		t.Fatalf("expected the driver error, got %v", err)
	}
}

func TestCardRepo_Delete(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wantErr error
	}{
		{"deleted", "DELETE 1", nil},
		{"missing", "DELETE 0", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDB()
			db.tag = pgconn.NewCommandTag(tt.tag)
			repo := &CardRepo{db: db}

			err := repo.Delete(context.Background(), uuid.New(), uuid.New())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCardRepo_UpdateNotFoundRollsBack(t *testing.T) {
	db := newFakeDB()
	db.rows = []pgx.Row{fakeRow{err: pgx.ErrNoRows}}
	repo := &CardRepo{db: db}

	title := "renamed"
	_, err := repo.Update(context.Background(), uuid.New(), uuid.New(), models.CardPatch{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if db.tx.committed || !db.tx.rolledBack {
		t.Fatalf("expected rollback without commit, got committed=%v rolledBack=%v", db.tx.committed, db.tx.rolledBack)
	}
}

func TestCardRepo_UpdateLocksMergesAndCommits(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stored := models.Card{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Title:       "Two Sum",
		Slug:        "two-sum",
		Description: "pairs",
		Solution:    "hash map",
		Difficulty:  models.Kyu6,
		Created:     created,
		Updated:     created,
	}
	saved := created.Add(time.Hour)

	db := newFakeDB()
	db.rows = []pgx.Row{storedRow(stored), fakeRow{values: []any{saved}}}
	repo := &CardRepo{db: db}

	title := "Two Sum II"
	mastery := 40
	c, err := repo.Update(context.Background(), stored.UserID, stored.ID, models.CardPatch{Title: &title, Mastery: &mastery})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !db.tx.committed {
		t.Fatalf("expected commit")
	}
	if len(db.queries) != 2 || !strings.Contains(db.queries[0].sql, "FOR UPDATE") {
		t.Fatalf("expected a locking read then a write, got %+v", db.queries)
	}

	if c.Title != title || c.Slug != "two-sum-ii" || c.Mastery != 40 || c.Solution != "hash map" || !c.Updated.Equal(saved) {
		t.Fatalf("unexpected merged card: %+v", c)
	}
	args := db.queries[1].args
	if args[0] != title || args[1] != "two-sum-ii" || args[8] != 40 || args[11] != stored.ID {
		t.Fatalf("unexpected update args: %v", args)
	}
}
