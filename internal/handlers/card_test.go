package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kyucards-backend/internal/middleware"
	"kyucards-backend/internal/models"
	"kyucards-backend/internal/services"
)

type stubCardService struct {
	cards       []models.Card
	lastFilters models.Filters
	lastDraft   models.CardDraft
	lastPatch   models.CardPatch
	lastUser    uuid.UUID
	err         error
	deleted     uuid.UUID
}

func (s *stubCardService) List(ctx context.Context, userID uuid.UUID, f models.Filters) ([]models.Card, error) {
	s.lastUser = userID
	s.lastFilters = f
	return s.cards, s.err
}

func (s *stubCardService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Card, error) {
	s.lastUser = userID
	if s.err != nil {
		return nil, s.err
	}
	for _, c := range s.cards {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, &services.NotFoundError{Message: "Card not found"}
}

func (s *stubCardService) Create(ctx context.Context, userID uuid.UUID, d models.CardDraft) (*models.Card, error) {
	s.lastUser = userID
	s.lastDraft = d
	if s.err != nil {
		return nil, s.err
	}
	return &models.Card{ID: uuid.New(), UserID: userID, Title: d.Title, Difficulty: d.Difficulty, Topics: d.Topics}, nil
}

func (s *stubCardService) Update(ctx context.Context, userID, id uuid.UUID, p models.CardPatch) (*models.Card, error) {
	s.lastUser = userID
	s.lastPatch = p
	if s.err != nil {
		return nil, s.err
	}
	c := models.Card{ID: id, UserID: userID, Difficulty: models.Kyu8, Topics: []models.Topic{models.TopicArrays}}
	p.Apply(&c)
	return &c, nil
}

func (s *stubCardService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	s.lastUser = userID
	s.deleted = id
	return s.err
}

func (s *stubCardService) Due(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	return s.cards, s.err
}

func (s *stubCardService) Summary(ctx context.Context, userID uuid.UUID) (models.DeckSummary, error) {
	return models.DeckSummary{Total: len(s.cards), Due: 1}, s.err
}

func authedRequest(method, target string, body []byte, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func TestCardHandler_ListParsesFilters(t *testing.T) {
	svc := &stubCardService{}
	h := NewCardHandler(svc, nil)
	userID := uuid.New()

	req := authedRequest(http.MethodGet,
		"/api/v1/cards?difficulty=6+kyu&topics=Arrays,regular+expressions&topics=Mathematics&q=+sum+&sort_by=mastery&order=asc",
		nil, userID, nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	f := svc.lastFilters
	if f.Difficulty == nil || *f.Difficulty != models.Kyu6 {
		t.Fatalf("expected 6 kyu filter, got %v", f.Difficulty)
	}
	want := []models.Topic{models.TopicArrays, models.TopicRegularExpressions, models.TopicMathematics}
	if len(f.Topics) != len(want) {
		t.Fatalf("expected topics %v, got %v", want, f.Topics)
	}
	for i := range want {
		if f.Topics[i] != want[i] {
			t.Fatalf("expected topics %v, got %v", want, f.Topics)
		}
	}
	if f.SearchQuery != "sum" || f.SortBy != models.SortByMastery || f.SortOrder != models.SortAsc {
		t.Fatalf("unexpected filters: %+v", f)
	}
	if svc.lastUser != userID {
		t.Fatalf("expected list scoped to the caller")
	}

	var body struct {
		Cards []models.Card `json:"cards"`
		Total int           `json:"total"`
	}
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Cards == nil || body.Total != 0 {
		t.Fatalf("expected an empty list, got %+v", body)
	}
}

func TestCardHandler_ListDefaultsToDifficultyDesc(t *testing.T) {
	svc := &stubCardService{}
	h := NewCardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.List(rr, authedRequest(http.MethodGet, "/api/v1/cards", nil, uuid.New(), nil))

	if svc.lastFilters.SortBy != models.SortByDifficulty || svc.lastFilters.SortOrder != models.SortDesc {
		t.Fatalf("unexpected default filters: %+v", svc.lastFilters)
	}
}

func TestCardHandler_ListRejectsBadFilters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"difficulty", "difficulty=9+kyu", "difficulty"},
		{"topic", "topics=Cooking", "topics"},
		{"order", "order=sideways", "order"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCardHandler(&stubCardService{}, nil)
			rr := httptest.NewRecorder()
			h.List(rr, authedRequest(http.MethodGet, "/api/v1/cards?"+tc.query, nil, uuid.New(), nil))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if apiErr := decodeError(t, rr); apiErr.Fields[tc.field] == "" {
				t.Fatalf("expected %s field error, got %+v", tc.field, apiErr)
			}
		})
	}
}

func TestCardHandler_CreateAcceptsTrainAndKyuStrings(t *testing.T) {
	svc := &stubCardService{}
	h := NewCardHandler(svc, nil)

	body := []byte(`{"title":"Warmup","description":"d","difficulty":"Train","topics":["Mathematics"]}`)
	rr := httptest.NewRecorder()
	h.Create(rr, authedRequest(http.MethodPost, "/api/v1/cards", body, uuid.New(), nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastDraft.Difficulty != models.Train {
		t.Fatalf("expected Train, got %v", svc.lastDraft.Difficulty)
	}
	if !strings.Contains(rr.Body.String(), `"difficulty":"Train"`) {
		t.Fatalf("expected Train in response, got %s", rr.Body.String())
	}
}

func TestCardHandler_CreateValidationError(t *testing.T) {
	svc := &stubCardService{err: &services.ValidationError{Fields: map[string]string{"title": "Title is required"}}}
	h := NewCardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, authedRequest(http.MethodPost, "/api/v1/cards", []byte(`{}`), uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if apiErr := decodeError(t, rr); apiErr.Code != "VALIDATION_ERROR" || apiErr.Fields["title"] == "" {
		t.Fatalf("unexpected error body: %+v", apiErr)
	}
}

func TestCardHandler_CreateBadJSON(t *testing.T) {
	h := NewCardHandler(&stubCardService{}, nil)
	rr := httptest.NewRecorder()
	h.Create(rr, authedRequest(http.MethodPost, "/api/v1/cards", []byte(`{"difficulty": 42`), uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCardHandler_GetInvalidAndMissing(t *testing.T) {
	h := NewCardHandler(&stubCardService{}, nil)

	rr := httptest.NewRecorder()
	h.Get(rr, authedRequest(http.MethodGet, "/api/v1/cards/nope", nil, uuid.New(), map[string]string{"id": "nope"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", rr.Code)
	}

	id := uuid.New().String()
	rr = httptest.NewRecorder()
	h.Get(rr, authedRequest(http.MethodGet, "/api/v1/cards/"+id, nil, uuid.New(), map[string]string{"id": id}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCardHandler_UpdateIgnoresMastery(t *testing.T) {
	svc := &stubCardService{}
	h := NewCardHandler(svc, nil)
	id := uuid.New().String()

	body := []byte(`{"title":"renamed","mastery":100}`)
	rr := httptest.NewRecorder()
	h.Update(rr, authedRequest(http.MethodPut, "/api/v1/cards/"+id, body, uuid.New(), map[string]string{"id": id}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastPatch.Title == nil || *svc.lastPatch.Title != "renamed" {
		t.Fatalf("expected title in patch, got %+v", svc.lastPatch)
	}
	if svc.lastPatch.Mastery != nil {
		t.Fatalf("mastery must not be settable through the API")
	}
}

func TestCardHandler_Delete(t *testing.T) {
	svc := &stubCardService{}
	h := NewCardHandler(svc, nil)
	id := uuid.New()

	rr := httptest.NewRecorder()
	h.Delete(rr, authedRequest(http.MethodDelete, "/api/v1/cards/"+id.String(), nil, uuid.New(), map[string]string{"id": id.String()}))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if svc.deleted != id {
		t.Fatalf("expected %s deleted, got %s", id, svc.deleted)
	}
}

func TestCardHandler_InternalErrorHidesDetails(t *testing.T) {
	svc := &stubCardService{err: errors.New("pq: connection refused")}
	h := NewCardHandler(svc, nil)

	req := authedRequest(http.MethodGet, "/api/v1/cards/summary", nil, uuid.New(), nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	rr := httptest.NewRecorder()
	h.Summary(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	apiErr := decodeError(t, rr)
	if apiErr.Code != "INTERNAL_ERROR" || strings.Contains(apiErr.Message, "connection") {
		t.Fatalf("unexpected error body: %+v", apiErr)
	}
	if apiErr.RequestID != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", apiErr.RequestID)
	}
}

func TestCardHandler_UnauthorizedFromService(t *testing.T) {
	svc := &stubCardService{err: &services.UnauthorizedError{Message: "Authentication required"}}
	h := NewCardHandler(svc, nil)

	rr := httptest.NewRecorder()
	h.List(rr, authedRequest(http.MethodGet, "/api/v1/cards", nil, uuid.Nil, nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if apiErr := decodeError(t, rr); apiErr.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected error code %q", apiErr.Code)
	}
}
