package semantic

// Payload is what the index keeps next to each vector: enough of the
// article to show a match without reading the feed.
type Payload struct {
	ArticleID string `json:"articleId"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Vehicle   string `json:"vehicle,omitempty"`
	Content   string `json:"content"`
}

func (p Payload) values() map[string]any {
	return map[string]any{
		"article_id": p.ArticleID,
		"title":      p.Title,
		"source":     p.Source,
		"vehicle":    p.Vehicle,
		"content":    p.Content,
	}
}

// Point is one embedded article. ID must be a UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a search result.
type Hit struct {
	ID      string
	Score   float32
	Payload Payload
}

// Query bounds a search.
type Query struct {
	Limit    int
	MinScore float32 // 0 keeps every hit
	Source   string  // exact match on the article source when set
}
