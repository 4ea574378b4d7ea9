package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filter       string // FT.SEARCH pre-filter expression; empty means "*"
	Vector       []float32
	K            int
	ReturnFields []string
	// RawScores returns __vector_score unmodified (ascending distance, used
	// for L2). Otherwise scores are normalized to similarity in [0,1].
	RawScores bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
