package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"scopelock/api/internal/scope"
	"scopelock/api/internal/util"
)

// Every mutating workflow operation runs as one serializable transaction with
// the project row locked up front, so the single-open-round, revision-cap and
// approval-lock rules hold under concurrent callers. A *RuleViolation returned
// from inside the closure rolls the whole transaction back.

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func lockProject(ctx context.Context, tx *sql.Tx, projectID string) (Project, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1 FOR UPDATE`, projectID)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, violation(KindNotFound, "Project not found")
	}
	if err != nil {
		return Project{}, fmt.Errorf("lock project: %w", err)
	}
	return project, nil
}

func openRound(ctx context.Context, tx *sql.Tx, projectID string) (*RevisionRound, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM revision_rounds WHERE project_id=$1 AND status='open'`, projectID)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open round: %w", err)
	}
	return &round, nil
}

func loadRound(ctx context.Context, tx *sql.Tx, roundID string) (RevisionRound, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM revision_rounds WHERE id=$1`, roundID)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RevisionRound{}, violation(KindNotFound, "Revision round not found")
	}
	if err != nil {
		return RevisionRound{}, fmt.Errorf("load round: %w", err)
	}
	return round, nil
}

// NoteInput is the client's submission for one revision note.
type NoteInput struct {
	Body                string
	RequestType         string
	Timecode            string
	ClientMarkedNewIdea bool
	ClientTimestamp     time.Time
}

// AddNote classifies and appends a note to an open revision round. The round
// must still be open and the owning project still active.
func (s *PostgresStore) AddNote(ctx context.Context, roundID string, input NoteInput, actorName string) (Note, error) {
	var note Note
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		round, err := loadRound(ctx, tx, roundID)
		if err != nil {
			return err
		}

		project, err := lockProject(ctx, tx, round.ProjectID)
		if err != nil {
			return err
		}
		if project.State == ProjectStateApproved {
			return violation(KindInvalidState, "Project is approved and locked")
		}
		if round.Status != RoundStatusOpen {
			return violation(KindInvalidState, "Cannot add notes to submitted round")
		}

		clientTimestamp := input.ClientTimestamp
		if clientTimestamp.IsZero() {
			clientTimestamp = time.Now().UTC()
		}

		note = Note{
			ID:                  util.NewID("note"),
			RoundID:             round.ID,
			ProjectID:           project.ID,
			Body:                input.Body,
			RequestType:         input.RequestType,
			Timecode:            input.Timecode,
			ClientMarkedNewIdea: input.ClientMarkedNewIdea,
			ScopeStatus:         scope.Classify(input.RequestType, input.ClientMarkedNewIdea, project.AllowedRequestTypes),
			ClientTimestamp:     clientTimestamp,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO notes (id, round_id, project_id, body, request_type, timecode, client_marked_new_idea, scope_status, client_timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`, note.ID, note.RoundID, note.ProjectID, note.Body, note.RequestType, note.Timecode, note.ClientMarkedNewIdea, string(note.ScopeStatus), note.ClientTimestamp).Scan(&note.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert note: %w", err)
		}

		return appendActivity(ctx, tx, project.ID, EventNoteAdded, actorName, map[string]any{
			"noteId":      note.ID,
			"roundNumber": round.RoundNumber,
			"scopeStatus": string(note.ScopeStatus),
		})
	})
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// OverrideScope replaces a note's effective classification. Re-overriding is
// allowed; the latest value wins. The reason is mandatory and the overriding
// editor and time are recorded on the note itself.
func (s *PostgresStore) OverrideScope(ctx context.Context, noteID string, newStatus scope.Status, reason, editorID, actorName string) (Note, error) {
	if strings.TrimSpace(reason) == "" {
		return Note{}, violation(KindValidation, "Override reason is required")
	}

	var note Note
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=$1`, noteID)
		var err error
		note, err = scanNote(row)
		if errors.Is(err, sql.ErrNoRows) {
			return violation(KindNotFound, "Note not found")
		}
		if err != nil {
			return fmt.Errorf("load note: %w", err)
		}

		project, err := lockProject(ctx, tx, note.ProjectID)
		if err != nil {
			return err
		}
		if project.State == ProjectStateApproved {
			return violation(KindInvalidState, "Cannot override scope on approved project")
		}

		from := note.EffectiveStatus()
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE notes SET overridden_status=$2, override_reason=$3, override_editor_id=$4, override_at=$5 WHERE id=$1
		`, noteID, string(newStatus), reason, editorID, now); err != nil {
			return fmt.Errorf("override note scope: %w", err)
		}
		note.OverriddenStatus = &newStatus
		note.OverrideReason = reason
		note.OverrideEditorID = editorID
		note.OverrideAt = &now

		return appendActivity(ctx, tx, project.ID, EventScopeOverridden, actorName, map[string]any{
			"noteId": noteID,
			"from":   string(from),
			"to":     string(newStatus),
			"reason": reason,
		})
	})
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// OpenRevisionRound starts a new round of client feedback, optionally pinned
// to the video version the feedback is against. Only one round may be open at
// a time and the cap is not consulted here.
func (s *PostgresStore) OpenRevisionRound(ctx context.Context, projectID string, videoVersionNumber *int, actorName string) (RevisionRound, error) {
	var round RevisionRound
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		project, err := lockProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if project.State == ProjectStateApproved {
			return violation(KindInvalidState, "Project is approved and locked")
		}
		existing, err := openRound(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if existing != nil {
			return violation(KindInvalidState, "A revision round is already open")
		}

		round = RevisionRound{ID: util.NewID("rnd"), ProjectID: projectID, VideoVersionNumber: videoVersionNumber, Status: RoundStatusOpen}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO revision_rounds (id, project_id, round_number, video_version_number, status)
			VALUES ($1, $2, (SELECT COALESCE(MAX(round_number), 0) + 1 FROM revision_rounds WHERE project_id=$2), $3, 'open')
			RETURNING round_number, opened_at
		`, round.ID, projectID, videoVersionNumber).Scan(&round.RoundNumber, &round.OpenedAt)
		if err != nil {
			return fmt.Errorf("insert round: %w", err)
		}

		metadata := map[string]any{"roundNumber": round.RoundNumber}
		if videoVersionNumber != nil {
			metadata["videoVersionNumber"] = *videoVersionNumber
		}
		return appendActivity(ctx, tx, projectID, EventRevisionRoundOpened, actorName, metadata)
	})
	if err != nil {
		return RevisionRound{}, err
	}
	return round, nil
}

// SubmitRevisionRound hands the open round back to the editor. This is the
// only place the revision cap is checked and the only place usage increments.
func (s *PostgresStore) SubmitRevisionRound(ctx context.Context, roundID, actorName string) (SubmitResult, error) {
	var result SubmitResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		round, err := loadRound(ctx, tx, roundID)
		if err != nil {
			return err
		}

		project, err := lockProject(ctx, tx, round.ProjectID)
		if err != nil {
			return err
		}
		if project.State == ProjectStateApproved {
			return violation(KindInvalidState, "Project is approved and locked")
		}
		if round.Status != RoundStatusOpen {
			return violation(KindInvalidState, "Revision round already submitted")
		}
		if project.RevisionUsed >= project.RevisionCap {
			return violation(KindQuotaExceeded, "Included Revisions Complete")
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE revision_rounds SET status='submitted', submitted_at=$2 WHERE id=$1
		`, roundID, now); err != nil {
			return fmt.Errorf("submit round: %w", err)
		}
		round.Status = RoundStatusSubmitted
		round.SubmittedAt = &now

		if _, err := tx.ExecContext(ctx, `
			UPDATE projects SET revision_used=revision_used+1, updated_at=NOW() WHERE id=$1
		`, project.ID); err != nil {
			return fmt.Errorf("increment revision used: %w", err)
		}
		project.RevisionUsed++

		var noteCount int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE round_id=$1`, roundID).Scan(&noteCount); err != nil {
			return fmt.Errorf("count round notes: %w", err)
		}

		result = SubmitResult{
			Project:    project,
			Round:      round,
			NoteCount:  noteCount,
			CapReached: project.RevisionUsed >= project.RevisionCap,
		}
		return appendActivity(ctx, tx, project.ID, EventRevisionRoundSubmit, actorName, map[string]any{
			"roundNumber":  round.RoundNumber,
			"revisionUsed": project.RevisionUsed,
			"revisionCap":  project.RevisionCap,
		})
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// UploadVideoVersion records a new cut. Any open round is force-closed
// without consuming a revision: the editor has answered it with new footage.
func (s *PostgresStore) UploadVideoVersion(ctx context.Context, projectID, videoURL, actorName string) (UploadResult, error) {
	var result UploadResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		project, err := lockProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if project.State == ProjectStateApproved {
			return violation(KindInvalidState, "Project is approved and locked")
		}

		existing, err := openRound(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if existing != nil {
			now := time.Now().UTC()
			if _, err := tx.ExecContext(ctx, `
				UPDATE revision_rounds SET status='submitted', submitted_at=$2 WHERE id=$1
			`, existing.ID, now); err != nil {
				return fmt.Errorf("close open round: %w", err)
			}
			existing.Status = RoundStatusSubmitted
			existing.SubmittedAt = &now
		}

		version := VideoVersion{ID: util.NewID("ver"), ProjectID: projectID, VideoURL: videoURL}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO video_versions (id, project_id, version_number, video_url)
			VALUES ($1, $2, (SELECT COALESCE(MAX(version_number), 0) + 1 FROM video_versions WHERE project_id=$2), $3)
			RETURNING version_number, uploaded_at
		`, version.ID, projectID, videoURL).Scan(&version.VersionNumber, &version.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert video version: %w", err)
		}

		metadata := map[string]any{"versionNumber": version.VersionNumber}
		if existing != nil {
			metadata["closedRoundNumber"] = existing.RoundNumber
		}
		result = UploadResult{
			Project:     project,
			Version:     version,
			ClosedRound: existing,
			OverCap:     project.RevisionUsed >= project.RevisionCap,
		}
		return appendActivity(ctx, tx, projectID, EventVideoUploaded, actorName, metadata)
	})
	if err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// ApproveProject locks the project for good and revokes every active review
// link in the same transaction. A second approval is rejected, not absorbed.
func (s *PostgresStore) ApproveProject(ctx context.Context, projectID, actorName string) (ApproveResult, error) {
	var result ApproveResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		project, err := lockProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if project.State == ProjectStateApproved {
			return violation(KindInvalidState, "Project already approved")
		}
		existing, err := openRound(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if existing != nil {
			return violation(KindInvalidState, "Cannot approve project with open revision round")
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE projects SET state='approved', approved_at=$2, updated_at=NOW() WHERE id=$1
		`, projectID, now); err != nil {
			return fmt.Errorf("approve project: %w", err)
		}
		project.State = ProjectStateApproved
		project.ApprovedAt = &now

		revoked, err := tx.ExecContext(ctx, `
			UPDATE review_tokens SET is_active=FALSE, revoked_at=$2 WHERE project_id=$1 AND is_active=TRUE
		`, projectID, now)
		if err != nil {
			return fmt.Errorf("revoke review tokens: %w", err)
		}
		revokedCount, _ := revoked.RowsAffected()

		result = ApproveResult{Project: project, RevokedTokens: int(revokedCount)}
		return appendActivity(ctx, tx, projectID, EventProjectApproved, actorName, map[string]any{
			"revokedTokens": revokedCount,
		})
	})
	if err != nil {
		return ApproveResult{}, err
	}
	return result, nil
}

// GenerateReviewToken mints a fresh magic-link token. With regenerate set,
// existing active tokens are revoked in the same transaction first.
func (s *PostgresStore) GenerateReviewToken(ctx context.Context, projectID string, regenerate bool, actorName string) (ReviewToken, error) {
	var token ReviewToken
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		project, err := lockProject(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if project.State == ProjectStateApproved {
			return violation(KindInvalidState, "Project is approved and locked")
		}

		if regenerate {
			if _, err := tx.ExecContext(ctx, `
				UPDATE review_tokens SET is_active=FALSE, revoked_at=NOW() WHERE project_id=$1 AND is_active=TRUE
			`, projectID); err != nil {
				return fmt.Errorf("revoke previous tokens: %w", err)
			}
		}

		token = ReviewToken{ID: util.NewID("rvt"), ProjectID: projectID, Token: util.NewToken(), IsActive: true}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO review_tokens (id, project_id, token, is_active)
			VALUES ($1, $2, $3, TRUE)
			RETURNING created_at
		`, token.ID, projectID, token.Token).Scan(&token.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert review token: %w", err)
		}

		metadata := map[string]any{}
		if regenerate {
			metadata["regenerated"] = true
		}
		return appendActivity(ctx, tx, projectID, EventReviewLinkGenerated, actorName, metadata)
	})
	if err != nil {
		return ReviewToken{}, err
	}
	return token, nil
}

// RevokeReviewToken deactivates one token. Revoking an already revoked token
// is a no-op rather than an error.
func (s *PostgresStore) RevokeReviewToken(ctx context.Context, tokenID, actorName string) (ReviewToken, error) {
	var token ReviewToken
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, project_id, token, is_active, created_at, last_used_at, revoked_at
			FROM review_tokens
			WHERE id=$1
		`, tokenID).Scan(&token.ID, &token.ProjectID, &token.Token, &token.IsActive, &token.CreatedAt, &token.LastUsedAt, &token.RevokedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return violation(KindNotFound, "Token not found")
		}
		if err != nil {
			return fmt.Errorf("load review token: %w", err)
		}
		if !token.IsActive {
			return nil
		}

		if _, err := lockProject(ctx, tx, token.ProjectID); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE review_tokens SET is_active=FALSE, revoked_at=$2 WHERE id=$1
		`, tokenID, now); err != nil {
			return fmt.Errorf("revoke review token: %w", err)
		}
		token.IsActive = false
		token.RevokedAt = &now

		return appendActivity(ctx, tx, token.ProjectID, EventReviewLinkRevoked, actorName, map[string]any{
			"tokenId": tokenID,
		})
	})
	if err != nil {
		return ReviewToken{}, err
	}
	return token, nil
}
