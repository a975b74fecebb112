package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProject ResultType = "project"
	ResultNote    ResultType = "note"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	ProjectID   string     `json:"projectId"`
	EditorID    string     `json:"editorId"`
	ScopeStatus string     `json:"scopeStatus,omitempty"`
}

// Query describes a search request. EditorID is always set: editors only
// search their own projects.
type Query struct {
	Text              string
	EditorID          string
	FilterType        ResultType // empty = all types
	FilterScopeStatus string
	Limit             int
	Offset            int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexProject(p ProjectRecord) error
	IndexNote(n NoteRecord) error
	DeleteProject(id string) error
	DeleteNote(id string) error
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ClientName string `json:"clientName"`
	EditorID   string `json:"editorId"`
	State      string `json:"state"`
}

// NoteRecord is the data we index for a revision note.
type NoteRecord struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	RequestType string `json:"requestType"`
	ScopeStatus string `json:"scopeStatus"`
	ProjectID   string `json:"projectId"`
	EditorID    string `json:"editorId"`
	RoundNumber int    `json:"roundNumber"`
}
