package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scopelock/api/internal/scope"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- editors ----

func (s *PostgresStore) GetEditorByID(ctx context.Context, editorID string) (Editor, error) {
	var editor Editor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified, deactivated_at, created_at, updated_at
		FROM editors
		WHERE id=$1
	`, editorID).Scan(
		&editor.ID,
		&editor.DisplayName,
		&editor.Email,
		&editor.PasswordHash,
		&editor.IsEmailVerified,
		&editor.DeactivatedAt,
		&editor.CreatedAt,
		&editor.UpdatedAt,
	)
	if err != nil {
		return Editor{}, err
	}
	return editor, nil
}

func (s *PostgresStore) GetEditorByEmail(ctx context.Context, email string) (Editor, error) {
	var editor Editor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified, deactivated_at, created_at, updated_at
		FROM editors
		WHERE LOWER(email)=LOWER($1)
	`, email).Scan(
		&editor.ID,
		&editor.DisplayName,
		&editor.Email,
		&editor.PasswordHash,
		&editor.IsEmailVerified,
		&editor.DeactivatedAt,
		&editor.CreatedAt,
		&editor.UpdatedAt,
	)
	if err != nil {
		return Editor{}, err
	}
	return editor, nil
}

func (s *PostgresStore) InsertEditor(ctx context.Context, editor Editor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO editors (id, display_name, email, password_hash, verification_token, verification_expires_at)
		VALUES ($1, $2, LOWER($3), $4, $5, $6)
	`, editor.ID, editor.DisplayName, editor.Email, editor.PasswordHash, editor.VerificationToken, editor.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert editor: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkEditorVerified(ctx context.Context, verificationToken string) (Editor, error) {
	var editor Editor
	err := s.db.QueryRowContext(ctx, `
		UPDATE editors
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_token <> '' AND verification_expires_at > NOW()
		RETURNING id, display_name, email, is_email_verified
	`, verificationToken).Scan(&editor.ID, &editor.DisplayName, &editor.Email, &editor.IsEmailVerified)
	if err != nil {
		return Editor{}, err
	}
	return editor, nil
}

func (s *PostgresStore) SavePasswordReset(ctx context.Context, editorID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (editor_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (editor_id) DO UPDATE SET token_hash=EXCLUDED.token_hash, expires_at=EXCLUDED.expires_at, used_at=NULL
	`, editorID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("save password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) ConsumePasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (Editor, error) {
	var editorID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE password_resets
		SET used_at=NOW()
		WHERE token_hash=$1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING editor_id
	`, tokenHash).Scan(&editorID)
	if err != nil {
		return Editor{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE editors SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, editorID, newPasswordHash); err != nil {
		return Editor{}, fmt.Errorf("update password: %w", err)
	}
	return s.GetEditorByID(ctx, editorID)
}

// ---- refresh sessions and access token revocation ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, editorID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, editor_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET editor_id=EXCLUDED.editor_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, editorID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (Editor, error) {
	const query = `
		SELECT e.id, e.display_name, e.email, e.is_email_verified
		FROM refresh_sessions rs
		JOIN editors e ON e.id = rs.editor_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
			AND e.deactivated_at IS NULL
	`
	var editor Editor
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&editor.ID, &editor.DisplayName, &editor.Email, &editor.IsEmailVerified)
	if err != nil {
		return Editor{}, err
	}
	return editor, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---- projects ----

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	allowed := project.AllowedRequestTypes
	if allowed == nil {
		allowed = []string{}
	}
	encodedAllowed, err := json.Marshal(allowed)
	if err != nil {
		return fmt.Errorf("marshal allowed request types: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, editor_id, title, client_name, client_email, allowed_request_types, revision_cap, state)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, 'active')
	`, project.ID, project.EditorID, project.Title, project.ClientName, project.ClientEmail, string(encodedAllowed), project.RevisionCap)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

const projectColumns = `
	id, editor_id, title, client_name, client_email, allowed_request_types,
	revision_cap, revision_used, state, approved_at, created_at, updated_at
`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var project Project
	var allowedRaw []byte
	err := row.Scan(
		&project.ID,
		&project.EditorID,
		&project.Title,
		&project.ClientName,
		&project.ClientEmail,
		&allowedRaw,
		&project.RevisionCap,
		&project.RevisionUsed,
		&project.State,
		&project.ApprovedAt,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return Project{}, err
	}
	_ = json.Unmarshal(allowedRaw, &project.AllowedRequestTypes)
	return project, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, projectID)
	return scanProject(row)
}

func (s *PostgresStore) ListProjects(ctx context.Context, editorID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE editor_id=$1
		ORDER BY updated_at DESC
	`, editorID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProjectDetail(ctx context.Context, projectID string) (ProjectDetail, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	detail := ProjectDetail{Project: project}

	detail.Versions, err = s.listVersions(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	detail.Rounds, err = s.listRounds(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	detail.Notes, err = s.listProjectNotes(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	detail.Tokens, err = s.ListReviewTokens(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	return detail, nil
}

func (s *PostgresStore) listVersions(ctx context.Context, projectID string) ([]VideoVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, version_number, video_url, uploaded_at
		FROM video_versions
		WHERE project_id=$1
		ORDER BY version_number DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list video versions: %w", err)
	}
	defer rows.Close()

	items := make([]VideoVersion, 0)
	for rows.Next() {
		var item VideoVersion
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.VersionNumber, &item.VideoURL, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan video version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video versions: %w", err)
	}
	return items, nil
}

const roundColumns = `
	id, project_id, round_number, video_version_number, status, opened_at, submitted_at
`

func scanRound(row interface{ Scan(...any) error }) (RevisionRound, error) {
	var round RevisionRound
	var versionNumber sql.NullInt32
	err := row.Scan(
		&round.ID,
		&round.ProjectID,
		&round.RoundNumber,
		&versionNumber,
		&round.Status,
		&round.OpenedAt,
		&round.SubmittedAt,
	)
	if err != nil {
		return RevisionRound{}, err
	}
	if versionNumber.Valid {
		n := int(versionNumber.Int32)
		round.VideoVersionNumber = &n
	}
	return round, nil
}

func (s *PostgresStore) listRounds(ctx context.Context, projectID string) ([]RevisionRound, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roundColumns+`
		FROM revision_rounds
		WHERE project_id=$1
		ORDER BY round_number DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list revision rounds: %w", err)
	}
	defer rows.Close()

	items := make([]RevisionRound, 0)
	for rows.Next() {
		item, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision round: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revision rounds: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRound(ctx context.Context, roundID string) (RevisionRound, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM revision_rounds WHERE id=$1`, roundID)
	return scanRound(row)
}

const noteColumns = `
	id, round_id, project_id, body, request_type, timecode, client_marked_new_idea,
	scope_status, overridden_status, override_reason, override_editor_id, override_at,
	client_timestamp, created_at
`

func scanNote(row interface{ Scan(...any) error }) (Note, error) {
	var note Note
	var overridden sql.NullString
	var overrideEditor sql.NullString
	err := row.Scan(
		&note.ID,
		&note.RoundID,
		&note.ProjectID,
		&note.Body,
		&note.RequestType,
		&note.Timecode,
		&note.ClientMarkedNewIdea,
		&note.ScopeStatus,
		&overridden,
		&note.OverrideReason,
		&overrideEditor,
		&note.OverrideAt,
		&note.ClientTimestamp,
		&note.CreatedAt,
	)
	if err != nil {
		return Note{}, err
	}
	if overridden.Valid {
		status := scope.Status(overridden.String)
		note.OverriddenStatus = &status
	}
	if overrideEditor.Valid {
		note.OverrideEditorID = overrideEditor.String
	}
	return note, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID string) (Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=$1`, noteID)
	return scanNote(row)
}

func (s *PostgresStore) listProjectNotes(ctx context.Context, projectID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE project_id=$1
		ORDER BY client_timestamp ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) listRoundNotes(ctx context.Context, q queryer, roundID string) ([]Note, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE round_id=$1
		ORDER BY client_timestamp ASC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list round notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round note: %w", err)
		}
		items = append(items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round notes: %w", err)
	}
	return items, nil
}

// ---- review tokens ----

func (s *PostgresStore) ListReviewTokens(ctx context.Context, projectID string) ([]ReviewToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, token, is_active, created_at, last_used_at, revoked_at
		FROM review_tokens
		WHERE project_id=$1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list review tokens: %w", err)
	}
	defer rows.Close()

	items := make([]ReviewToken, 0)
	for rows.Next() {
		var item ReviewToken
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Token, &item.IsActive, &item.CreatedAt, &item.LastUsedAt, &item.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan review token: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review tokens: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetReviewToken(ctx context.Context, tokenID string) (ReviewToken, error) {
	var item ReviewToken
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, token, is_active, created_at, last_used_at, revoked_at
		FROM review_tokens
		WHERE id=$1
	`, tokenID).Scan(&item.ID, &item.ProjectID, &item.Token, &item.IsActive, &item.CreatedAt, &item.LastUsedAt, &item.RevokedAt)
	if err != nil {
		return ReviewToken{}, err
	}
	return item, nil
}

// GetReviewByToken resolves a magic-link token to the client review
// projection. Unknown and inactive tokens both come back as NotFound so the
// response does not leak whether a token ever existed.
func (s *PostgresStore) GetReviewByToken(ctx context.Context, token string) (ReviewView, error) {
	var projectID string
	err := s.db.QueryRowContext(ctx, `
		SELECT project_id FROM review_tokens WHERE token=$1 AND is_active=TRUE
	`, token).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return ReviewView{}, violation(KindNotFound, "Token not found")
	}
	if err != nil {
		return ReviewView{}, fmt.Errorf("lookup review token: %w", err)
	}

	// Best effort, outside any transaction.
	_, _ = s.db.ExecContext(ctx, `UPDATE review_tokens SET last_used_at=NOW() WHERE token=$1`, token)

	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return ReviewView{}, fmt.Errorf("load reviewed project: %w", err)
	}
	view := ReviewView{Project: project}

	var latest VideoVersion
	err = s.db.QueryRowContext(ctx, `
		SELECT id, project_id, version_number, video_url, uploaded_at
		FROM video_versions
		WHERE project_id=$1
		ORDER BY version_number DESC
		LIMIT 1
	`, projectID).Scan(&latest.ID, &latest.ProjectID, &latest.VersionNumber, &latest.VideoURL, &latest.UploadedAt)
	if err == nil {
		view.LatestVersion = &latest
	} else if !errors.Is(err, sql.ErrNoRows) {
		return ReviewView{}, fmt.Errorf("load latest version: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM revision_rounds WHERE project_id=$1 AND status='open'`, projectID)
	open, err := scanRound(row)
	if err == nil {
		view.OpenRound = &open
		view.Notes, err = s.listRoundNotes(ctx, s.db, open.ID)
		if err != nil {
			return ReviewView{}, err
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return ReviewView{}, fmt.Errorf("load open round: %w", err)
	}

	return view, nil
}

// ---- activity log ----

func (s *PostgresStore) ListActivity(ctx context.Context, projectID string, limit int) ([]ActivityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, event_type, actor_name, metadata, created_at
		FROM activity_log
		WHERE project_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityEvent, 0)
	for rows.Next() {
		var item ActivityEvent
		var metadataRaw []byte
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.EventType, &item.ActorName, &metadataRaw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		_ = json.Unmarshal(metadataRaw, &item.Metadata)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func appendActivity(ctx context.Context, tx *sql.Tx, projectID, eventType, actorName string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO activity_log (project_id, event_type, actor_name, metadata)
		VALUES ($1, $2, $3, $4::jsonb)
	`, projectID, eventType, actorName, string(encoded))
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}
