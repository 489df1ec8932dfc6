package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kyucards-backend/internal/models"
)

// cardRecord is the SQLite row for a card. Topics are kept as a JSON list
// so their order survives a round trip.
type cardRecord struct {
	ID           string         `gorm:"primaryKey;size:36"`
	UserID       string         `gorm:"size:36;not null;index:idx_cards_user_created,priority:1"`
	Title        string         `gorm:"not null"`
	Slug         string         `gorm:"not null;default:''"`
	Description  string         `gorm:"not null;default:''"`
	Solution     string         `gorm:"not null;default:''"`
	Explanation  string         `gorm:"not null;default:''"`
	TestCases    string         `gorm:"not null;default:''"`
	Difficulty   int            `gorm:"not null"`
	Topics       datatypes.JSON `gorm:"not null"`
	Mastery      int            `gorm:"not null;default:0"`
	LastReviewed *time.Time
	NextReview   *time.Time `gorm:"index"`
	Created      time.Time  `gorm:"not null;index:idx_cards_user_created,priority:2"`
	Updated      time.Time  `gorm:"not null"`
}

func (cardRecord) TableName() string { return "cards" }

// LocalCardRepo stores cards in a local SQLite file through gorm.
type LocalCardRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLocalCardRepo(db *gorm.DB) *LocalCardRepo {
	return &LocalCardRepo{db: db, now: time.Now}
}

func (r *LocalCardRepo) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&cardRecord{})
}

func (r *LocalCardRepo) List(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	var rows []cardRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	cards := make([]models.Card, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toCard()
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, nil
}

func (r *LocalCardRepo) ListOwners(ctx context.Context) ([]uuid.UUID, error) {
	var raw []string
	if err := r.db.WithContext(ctx).Model(&cardRecord{}).Distinct().Pluck("user_id", &raw).Error; err != nil {
		return nil, err
	}
	owners := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("bad owner id %q: %w", s, err)
		}
		owners = append(owners, id)
	}
	return owners, nil
}

func (r *LocalCardRepo) Get(ctx context.Context, userID, id uuid.UUID) (*models.Card, error) {
	row, err := r.find(r.db.WithContext(ctx), userID, id)
	if err != nil {
		return nil, err
	}
	return row.toCard()
}

func (r *LocalCardRepo) Create(ctx context.Context, userID uuid.UUID, d models.CardDraft) (*models.Card, error) {
	now := r.now().UTC()
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
		Created:     now,
		Updated:     now,
	}

	row, err := fromCard(c)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *LocalCardRepo) Update(ctx context.Context, userID, id uuid.UUID, p models.CardPatch) (*models.Card, error) {
	var out *models.Card
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.find(tx, userID, id)
		if err != nil {
			return err
		}
		c, err := row.toCard()
		if err != nil {
			return err
		}

		p.Apply(c)
		c.Slug = slug.Make(c.Title)
		c.Updated = r.now().UTC()

		updated, err := fromCard(c)
		if err != nil {
			return err
		}
		if err := tx.Save(updated).Error; err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LocalCardRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id.String(), userID.String()).
		Delete(&cardRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LocalCardRepo) find(tx *gorm.DB, userID, id uuid.UUID) (*cardRecord, error) {
	var row cardRecord
	err := tx.Where("id = ? AND user_id = ?", id.String(), userID.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func fromCard(c *models.Card) (*cardRecord, error) {
	topics, err := json.Marshal(topicStrings(c.Topics))
	if err != nil {
		return nil, fmt.Errorf("encode topics: %w", err)
	}
	return &cardRecord{
		ID:           c.ID.String(),
		UserID:       c.UserID.String(),
		Title:        c.Title,
		Slug:         c.Slug,
		Description:  c.Description,
		Solution:     c.Solution,
		Explanation:  c.Explanation,
		TestCases:    c.TestCases,
		Difficulty:   int(c.Difficulty),
		Topics:       datatypes.JSON(topics),
		Mastery:      c.Mastery,
		LastReviewed: c.LastReviewed,
		NextReview:   c.NextReview,
		Created:      c.Created,
		Updated:      c.Updated,
	}, nil
}

func (row *cardRecord) toCard() (*models.Card, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("bad card id %q: %w", row.ID, err)
	}
	userID, err := uuid.Parse(row.UserID)
	if err != nil {
		return nil, fmt.Errorf("bad owner id %q: %w", row.UserID, err)
	}
	var topics []string
	if err := json.Unmarshal(row.Topics, &topics); err != nil {
		return nil, fmt.Errorf("decode topics for card %s: %w", row.ID, err)
	}
	return &models.Card{
		ID:           id,
		UserID:       userID,
		Title:        row.Title,
		Slug:         row.Slug,
		Description:  row.Description,
		Solution:     row.Solution,
		Explanation:  row.Explanation,
		TestCases:    row.TestCases,
		Difficulty:   models.Difficulty(row.Difficulty),
		Topics:       toTopics(topics),
		Mastery:      row.Mastery,
		LastReviewed: row.LastReviewed,
		NextReview:   row.NextReview,
		Created:      row.Created,
		Updated:      row.Updated,
	}, nil
}
