package models

type SortKey string

const (
	SortByDifficulty   SortKey = "difficulty"
	SortByLastReviewed SortKey = "lastReviewed"
	SortByMastery      SortKey = "mastery"
)

func (k SortKey) IsValid() bool {
	return k == SortByDifficulty || k == SortByLastReviewed || k == SortByMastery
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type Filters struct {
	Difficulty  *Difficulty `json:"difficulty"` // nil means all tiers
	Topics      []Topic     `json:"topics"`
	SearchQuery string      `json:"search_query"`
	SortBy      SortKey     `json:"sort_by"`
	SortOrder   SortOrder   `json:"sort_order"`
}

// DefaultFilters matches the initial list view: every card, highest kyu
// number first.
func DefaultFilters() Filters {
	return Filters{
		SortBy:    SortByDifficulty,
		SortOrder: SortDesc,
	}
}
