package models

// SimilarFragment is a single nearest-neighbour hit.
type SimilarFragment struct {
	FragmentID string  `json:"fragment_id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// SearchResponse is the response for a retrieval request.
type SearchResponse struct {
	Query     string             `json:"query"`
	Results   []*SimilarFragment `json:"results"`
	Total     int                `json:"total"`
	QueryTime int64              `json:"query_time_ms"`
}

// Answer is a generated reply together with the fragments used as context.
type Answer struct {
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Sources  []*SimilarFragment `json:"sources"`
}

// Status summarises a store for the status command and endpoint.
type Status struct {
	Meta              *MetaInfo `json:"meta,omitempty"`
	Documents         int64     `json:"documents"`
	Fragments         int64     `json:"fragments"`
	PendingEmbeddings int64     `json:"pending_embeddings"`
	DiskUsageBytes    int64     `json:"disk_usage_bytes,omitempty"`
	Backend           string    `json:"backend"`
}
