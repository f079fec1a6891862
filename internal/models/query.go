package models

import "fmt"

// Retrieval limits shared by the CLI, the HTTP API and the chat loop.
const (
	DefaultResultLimit = 5
	MaxResultLimit     = 20
)

// SearchQuery is a retrieval or question request.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate rejects an empty query and clamps Limit into [1, MaxResultLimit],
// using DefaultResultLimit when unset.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.Limit = ClampLimit(q.Limit)
	return nil
}

// ClampLimit maps a requested result count onto the supported range.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultResultLimit
	}
	if limit > MaxResultLimit {
		return MaxResultLimit
	}
	return limit
}
