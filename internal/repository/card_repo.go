package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kyucards-backend/internal/models"
)

var ErrNotFound = errors.New("card not found")

// pgxConn is the part of *pgxpool.Pool the repo uses.
type pgxConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CardRepo stores cards in Postgres.
type CardRepo struct {
	db pgxConn
}

func NewCardRepo(pool *pgxpool.Pool) *CardRepo {
	return &CardRepo{db: pool}
}

const cardColumns = `id, user_id, title, slug, description, solution, explanation, test_cases,
	difficulty, topics, mastery, last_reviewed, next_review, created, updated`

func (r *CardRepo) List(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE user_id = $1 ORDER BY created DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// ListOwners returns every user that owns at least one card.
func (r *CardRepo) ListOwners(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, "SELECT DISTINCT user_id FROM cards")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func (r *CardRepo) Get(ctx context.Context, userID, id uuid.UUID) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND user_id = $2`

	c, err := scanCard(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *CardRepo) Create(ctx context.Context, userID uuid.UUID, d models.CardDraft) (*models.Card, error) {
	c := &models.Card{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       d.Title,
		Slug:        slug.Make(d.Title),
		Description: d.Description,
		Solution:    d.Solution,
		Explanation: d.Explanation,
		TestCases:   d.TestCases,
		Difficulty:  d.Difficulty,
		Topics:      append([]models.Topic(nil), d.Topics...),
	}

	query := `INSERT INTO cards (id, user_id, title, slug, description, solution, explanation, test_cases, difficulty, topics, mastery)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0) RETURNING created, updated`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.UserID, c.Title, c.Slug, c.Description, c.Solution, c.Explanation, c.TestCases,
		int(c.Difficulty), topicStrings(c.Topics),
	).Scan(&c.Created, &c.Updated)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update merges p into the stored card under a row lock and refreshes
// updated. It returns the card as stored.
func (r *CardRepo) Update(ctx context.Context, userID, id uuid.UUID, p models.CardPatch) (*models.Card, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND user_id = $2 FOR UPDATE`
	c, err := scanCard(tx.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Apply(c)
	c.Slug = slug.Make(c.Title)

	err = tx.QueryRow(ctx,
		`UPDATE cards SET title = $1, slug = $2, description = $3, solution = $4, explanation = $5, test_cases = $6,
		 difficulty = $7, topics = $8, mastery = $9, last_reviewed = $10, next_review = $11, updated = NOW()
		 WHERE id = $12 RETURNING updated`,
		c.Title, c.Slug, c.Description, c.Solution, c.Explanation, c.TestCases,
		int(c.Difficulty), topicStrings(c.Topics), c.Mastery, c.LastReviewed, c.NextReview, c.ID,
	).Scan(&c.Updated)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CardRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM cards WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCard(row pgx.Row) (*models.Card, error) {
	var (
		c          models.Card
		difficulty int
		topics     []string
		last, next *time.Time
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Title, &c.Slug, &c.Description, &c.Solution, &c.Explanation, &c.TestCases,
		&difficulty, &topics, &c.Mastery, &last, &next, &c.Created, &c.Updated,
	)
	if err != nil {
		return nil, err
	}
	c.Difficulty = models.Difficulty(difficulty)
	c.Topics = toTopics(topics)
	c.LastReviewed = last
	c.NextReview = next
	return &c, nil
}

func topicStrings(topics []models.Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = string(t)
	}
	return out
}

func toTopics(raw []string) []models.Topic {
	out := make([]models.Topic, len(raw))
	for i, s := range raw {
		out[i] = models.Topic(s)
	}
	return out
}
