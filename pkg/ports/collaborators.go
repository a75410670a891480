package ports

import "context"

// LanguageModel generates a completion for a prompt.
type LanguageModel interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// SearchResult is a single document returned by a PolicySearcher.
type SearchResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// SearchResponse is the outcome of a policy search.
type SearchResponse struct {
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results"`
}

// PolicySearcher looks up current policy documents on the web.
type PolicySearcher interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}
