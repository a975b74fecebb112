package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across projects and notes using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.EditorID}
	argN := 3

	var subQueries []string

	// Projects sub-query
	if q.FilterType == "" || q.FilterType == ResultProject {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id, p.title,
				ts_headline('english', coalesce(p.client_name, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS project_id, p.editor_id,
				''::text AS scope_status,
				ts_rank(p.fts, %s) AS rank
			FROM projects p
			WHERE p.fts @@ %s AND p.editor_id = $2`, tsQuery, tsQuery, tsQuery))
	}

	// Notes sub-query
	if q.FilterType == "" || q.FilterType == ResultNote {
		noteWhere := fmt.Sprintf("n.fts @@ %s AND p.editor_id = $2", tsQuery)
		if q.FilterScopeStatus != "" {
			noteWhere += fmt.Sprintf(" AND COALESCE(n.overridden_status, n.scope_status) = $%d", argN)
			args = append(args, q.FilterScopeStatus)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'note'::text AS type, n.id, n.request_type AS title,
				ts_headline('english', coalesce(n.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				n.project_id, p.editor_id,
				COALESCE(n.overridden_status, n.scope_status) AS scope_status,
				ts_rank(n.fts, %s) AS rank
			FROM notes n
			JOIN projects p ON p.id = n.project_id
			WHERE %s`, tsQuery, tsQuery, noteWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id, editor_id, scope_status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID, &r.EditorID, &r.ScopeStatus); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []NoteRecord, error) {
	projectRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, client_name, editor_id, state
		FROM projects
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load projects: %w", err)
	}
	defer projectRows.Close()

	projects := make([]ProjectRecord, 0)
	for projectRows.Next() {
		var pr ProjectRecord
		if err := projectRows.Scan(&pr.ID, &pr.Title, &pr.ClientName, &pr.EditorID, &pr.State); err != nil {
			return nil, nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	if err := projectRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate projects: %w", err)
	}

	noteRows, err := p.db.QueryContext(ctx, `
		SELECT n.id, n.body, n.request_type, COALESCE(n.overridden_status, n.scope_status),
			n.project_id, p.editor_id, r.round_number
		FROM notes n
		JOIN projects p ON p.id = n.project_id
		JOIN revision_rounds r ON r.id = n.round_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load notes: %w", err)
	}
	defer noteRows.Close()

	notes := make([]NoteRecord, 0)
	for noteRows.Next() {
		var n NoteRecord
		if err := noteRows.Scan(&n.ID, &n.Body, &n.RequestType, &n.ScopeStatus, &n.ProjectID, &n.EditorID, &n.RoundNumber); err != nil {
			return nil, nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := noteRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate notes: %w", err)
	}

	return projects, notes, nil
}
