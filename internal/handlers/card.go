package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kyucards-backend/internal/logger"
	"kyucards-backend/internal/middleware"
	"kyucards-backend/internal/models"
)

type cardService interface {
	List(ctx context.Context, userID uuid.UUID, f models.Filters) ([]models.Card, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Card, error)
	Create(ctx context.Context, userID uuid.UUID, d models.CardDraft) (*models.Card, error)
	Update(ctx context.Context, userID, id uuid.UUID, p models.CardPatch) (*models.Card, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Due(ctx context.Context, userID uuid.UUID) ([]models.Card, error)
	Summary(ctx context.Context, userID uuid.UUID) (models.DeckSummary, error)
}

type CardHandler struct {
	cards cardService
	log   *logger.Logger
}

func NewCardHandler(cards cardService, log *logger.Logger) *CardHandler {
	return &CardHandler{cards: cards, log: log}
}

// List returns the user's cards. Query parameters: difficulty ("6", "6 kyu"
// or "Train"), topics (repeated or comma separated), q, sort_by
// (difficulty, lastReviewed, mastery) and order (asc, desc).
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	f, fields := parseFilters(r)
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid filters", fields, r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	cards, err := h.cards.List(r.Context(), userID, f)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards": nonNil(cards),
		"total": len(cards),
	})
}

func (h *CardHandler) Due(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	cards, err := h.cards.Due(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards": nonNil(cards),
		"total": len(cards),
	})
}

func (h *CardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	summary, err := h.cards.Summary(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft models.CardDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	card, err := h.cards.Create(r.Context(), userID, draft)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	card, err := h.cards.Get(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	var patch models.CardPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	card, err := h.cards.Update(r.Context(), userID, id, patch)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid card ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.cards.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFilters(r *http.Request) (models.Filters, map[string]string) {
	q := r.URL.Query()
	f := models.DefaultFilters()
	fields := map[string]string{}

	if raw := strings.TrimSpace(q.Get("difficulty")); raw != "" {
		d, err := models.ParseDifficulty(raw)
		if err != nil {
			fields["difficulty"] = "Difficulty must be 1-8 kyu or Train"
		} else {
			f.Difficulty = &d
		}
	}

	for _, value := range q["topics"] {
		for _, name := range strings.Split(value, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			topic, ok := models.ParseTopic(name)
			if !ok {
				fields["topics"] = "Unknown topic " + strings.TrimSpace(name)
				continue
			}
			f.Topics = append(f.Topics, topic)
		}
	}

	f.SearchQuery = strings.TrimSpace(q.Get("q"))

	if sortBy := q.Get("sort_by"); sortBy != "" {
		f.SortBy = models.SortKey(sortBy)
	}
	switch order := strings.ToLower(q.Get("order")); order {
	case "":
	case string(models.SortAsc), string(models.SortDesc):
		f.SortOrder = models.SortOrder(order)
	default:
		fields["order"] = "Order must be asc or desc"
	}

	return f, fields
}

func nonNil(cards []models.Card) []models.Card {
	if cards == nil {
		return []models.Card{}
	}
	return cards
}
