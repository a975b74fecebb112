package app

import (
	"context"
	"io"
	"strings"
	"time"

	"scopelock/api/internal/auth"
	"scopelock/api/internal/authpw"
	"scopelock/api/internal/config"
	"scopelock/api/internal/export"
	"scopelock/api/internal/media"
	"scopelock/api/internal/notify"
	"scopelock/api/internal/scope"
	"scopelock/api/internal/search"
	"scopelock/api/internal/session"
	"scopelock/api/internal/store"
	"scopelock/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	EditorID     string
	EditorName   string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type CreateProjectInput struct {
	Title               string   `json:"title"`
	ClientName          string   `json:"clientName"`
	ClientEmail         string   `json:"clientEmail"`
	AllowedRequestTypes []string `json:"allowedRequestTypes"`
	RevisionCap         *int     `json:"revisionCap"`
}

type AddNoteInput struct {
	Body                string `json:"body"`
	RequestType         string `json:"requestType"`
	Timecode            string `json:"timecode"`
	ClientMarkedNewIdea bool   `json:"clientMarkedNewIdea"`
	Timestamp           string `json:"timestamp"`
}

type OverrideScopeInput struct {
	NewStatus string `json:"newStatus"`
	Reason    string `json:"reason"`
}

var allowedRequestTypes = map[string]struct{}{
	"color":    {},
	"audio":    {},
	"graphics": {},
	"text":     {},
	"cut":      {},
	"pacing":   {},
	"music":    {},
	"effects":  {},
}

type dataStore interface {
	GetEditorByID(context.Context, string) (store.Editor, error)
	GetEditorByEmail(context.Context, string) (store.Editor, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.Editor, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjects(context.Context, string) ([]store.Project, error)
	GetProjectDetail(context.Context, string) (store.ProjectDetail, error)
	GetNote(context.Context, string) (store.Note, error)
	GetRound(context.Context, string) (store.RevisionRound, error)
	ListActivity(context.Context, string, int) ([]store.ActivityEvent, error)
	ListReviewTokens(context.Context, string) ([]store.ReviewToken, error)
	GetReviewToken(context.Context, string) (store.ReviewToken, error)
	GetReviewByToken(context.Context, string) (store.ReviewView, error)

	AddNote(context.Context, string, store.NoteInput, string) (store.Note, error)
	OverrideScope(context.Context, string, scope.Status, string, string, string) (store.Note, error)
	OpenRevisionRound(context.Context, string, *int, string) (store.RevisionRound, error)
	SubmitRevisionRound(context.Context, string, string) (store.SubmitResult, error)
	UploadVideoVersion(context.Context, string, string, string) (store.UploadResult, error)
	ApproveProject(context.Context, string, string) (store.ApproveResult, error)
	GenerateReviewToken(context.Context, string, bool, string) (store.ReviewToken, error)
	RevokeReviewToken(context.Context, string, string) (store.ReviewToken, error)

	Ping(ctx context.Context) error
}

// refreshSessions is the Redis-backed refresh token store. When absent the
// service falls back to the refresh_sessions table.
type refreshSessions interface {
	SaveSession(ctx context.Context, tokenHash string, editor store.Editor, expiresAt time.Time) error
	LookupSession(ctx context.Context, tokenHash string) (store.Editor, error)
	RevokeSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshSessions
	authpw   *authpw.Service
	notifier *notify.Service
	search   *search.Service
	media    *media.Service
	export   *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore) *Service {
	return &Service{cfg: cfg, store: dataStore}
}

func (s *Service) SetSessionStore(sessions *session.RedisStore) {
	if sessions != nil {
		s.sessions = sessions
	}
}

func (s *Service) SetAuthPassword(svc *authpw.Service) { s.authpw = svc }
func (s *Service) SetNotifier(svc *notify.Service)     { s.notifier = svc }
func (s *Service) SetSearch(svc *search.Service)       { s.search = svc }
func (s *Service) SetMedia(svc *media.Service)         { s.media = svc }
func (s *Service) SetExport(svc *export.Service)       { s.export = svc }

func (s *Service) AuthPasswordService() *authpw.Service { return s.authpw }

func (s *Service) SMTPConfigured() bool {
	return s.cfg.SMTPHost != "" && s.cfg.SMTPFrom != ""
}

func (s *Service) MediaConfigured() bool { return s.media != nil }

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---- sessions ----

func (s *Service) CreateSession(ctx context.Context, editorID string) (Session, error) {
	editor, err := s.store.GetEditorByID(ctx, editorID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, editor)
}

func (s *Service) issueSession(ctx context.Context, editor store.Editor) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   editor.ID,
		Name:  editor.DisplayName,
		Email: editor.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	tokenHash := auth.HashToken(refresh)
	if s.sessions != nil {
		err = s.sessions.SaveSession(ctx, tokenHash, editor, refreshExpires)
	} else {
		err = s.store.SaveRefreshSession(ctx, tokenHash, editor.ID, refreshExpires)
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		EditorID:     editor.ID,
		EditorName:   editor.DisplayName,
		Email:        editor.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)

	var editor store.Editor
	var err error
	if s.sessions != nil {
		editor, err = s.sessions.LookupSession(ctx, tokenHash)
		if err == nil {
			err = s.sessions.RevokeSession(ctx, tokenHash)
		}
	} else {
		editor, err = s.store.LookupRefreshSession(ctx, tokenHash)
		if err == nil {
			err = s.store.RevokeRefreshSession(ctx, tokenHash)
		}
	}
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, editor)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	editor, err := s.store.GetEditorByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if editor.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:      token,
		EditorID:   editor.ID,
		EditorName: editor.DisplayName,
		Email:      editor.Email,
		JTI:        claims.JTI,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		tokenHash := auth.HashToken(refreshToken)
		if s.sessions != nil {
			_ = s.sessions.RevokeSession(ctx, tokenHash)
		} else {
			_ = s.store.RevokeRefreshSession(ctx, tokenHash)
		}
	}
	return nil
}

// NotifyEditorSignedUp hands the verification mail to the notifier.
func (s *Service) NotifyEditorSignedUp(email, displayName, verificationToken string) {
	if s.notifier != nil {
		s.notifier.EditorSignedUp(email, displayName, verificationToken)
	}
}

// NotifyPasswordReset hands the reset mail to the notifier.
func (s *Service) NotifyPasswordReset(ctx context.Context, email, resetToken string) {
	if s.notifier == nil {
		return
	}
	editor, err := s.store.GetEditorByEmail(ctx, email)
	if err != nil {
		return
	}
	s.notifier.PasswordResetRequested(editor.Email, editor.DisplayName, resetToken)
}

// ---- projects (editor-facing) ----

func (s *Service) CreateProject(ctx context.Context, sess Session, input CreateProjectInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	clientName := strings.TrimSpace(input.ClientName)
	clientEmail := strings.TrimSpace(input.ClientEmail)
	if title == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "title is required", nil)
	}
	if clientName == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "clientName is required", nil)
	}
	if clientEmail != "" && !strings.Contains(clientEmail, "@") {
		return nil, domainError(422, "VALIDATION_ERROR", "clientEmail is not a valid address", nil)
	}

	types := make([]string, 0, len(input.AllowedRequestTypes))
	seen := map[string]struct{}{}
	for _, raw := range input.AllowedRequestTypes {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		if _, ok := allowedRequestTypes[t]; !ok {
			return nil, domainError(422, "VALIDATION_ERROR", "unknown request type: "+t, nil)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}

	revisionCap := 2
	if input.RevisionCap != nil {
		if *input.RevisionCap < 0 {
			return nil, domainError(422, "VALIDATION_ERROR", "revisionCap must be zero or greater", nil)
		}
		revisionCap = *input.RevisionCap
	}

	project := store.Project{
		ID:                  util.NewID("prj"),
		EditorID:            sess.EditorID,
		Title:               title,
		ClientName:          clientName,
		ClientEmail:         clientEmail,
		AllowedRequestTypes: types,
		RevisionCap:         revisionCap,
		State:               store.ProjectStateActive,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}

	s.indexProject(project)

	return map[string]any{"project": projectPayload(project)}, nil
}

func (s *Service) ListProjects(ctx context.Context, sess Session) (map[string]any, error) {
	projects, err := s.store.ListProjects(ctx, sess.EditorID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectPayload(project))
	}
	return map[string]any{"projects": items}, nil
}

func (s *Service) GetProject(ctx context.Context, sess Session, projectID string) (map[string]any, error) {
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	detail, err := s.store.GetProjectDetail(ctx, projectID)
	if err != nil {
		return nil, err
	}

	versions := make([]map[string]any, 0, len(detail.Versions))
	for _, version := range detail.Versions {
		versions = append(versions, s.versionPayload(ctx, version))
	}
	rounds := make([]map[string]any, 0, len(detail.Rounds))
	for _, round := range detail.Rounds {
		rounds = append(rounds, roundPayload(round))
	}
	notes := make([]map[string]any, 0, len(detail.Notes))
	for _, note := range detail.Notes {
		notes = append(notes, notePayload(note))
	}
	tokens := make([]map[string]any, 0, len(detail.Tokens))
	for _, token := range detail.Tokens {
		tokens = append(tokens, tokenPayload(token, s.cfg.AppURL))
	}

	return map[string]any{
		"project":  projectPayload(detail.Project),
		"versions": versions,
		"rounds":   rounds,
		"notes":    notes,
		"tokens":   tokens,
	}, nil
}

func (s *Service) Activity(ctx context.Context, sess Session, projectID string, limit int) (map[string]any, error) {
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	events, err := s.store.ListActivity(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		items = append(items, map[string]any{
			"id":        event.ID,
			"projectId": event.ProjectID,
			"eventType": event.EventType,
			"actorName": event.ActorName,
			"metadata":  event.Metadata,
			"createdAt": event.CreatedAt,
		})
	}
	return map[string]any{"events": items}, nil
}

// UploadVersion records a new cut referencing an externally hosted video.
func (s *Service) UploadVersion(ctx context.Context, sess Session, projectID, videoURL string) (map[string]any, error) {
	if strings.TrimSpace(videoURL) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "videoUrl is required", nil)
	}
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	result, err := s.store.UploadVideoVersion(ctx, projectID, videoURL, sess.EditorName)
	if err != nil {
		return nil, err
	}
	return s.uploadPayload(ctx, result), nil
}

// UploadVersionFile streams a video file into object storage and records the
// stored object name as the version's video URL.
func (s *Service) UploadVersionFile(ctx context.Context, sess Session, projectID, filename string, file io.Reader, size int64, contentType string) (map[string]any, error) {
	if s.media == nil {
		return nil, domainError(503, "MEDIA_UNAVAILABLE", "Video storage not configured", nil)
	}
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	detail, err := s.store.GetProjectDetail(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// The version number in the object name is advisory; the random infix
	// keeps concurrent uploads from colliding.
	objectName := media.ObjectName(projectID, len(detail.Versions)+1, util.NewID("vid")+"-"+filename)
	stored, err := s.media.Upload(ctx, objectName, file, size, contentType)
	if err != nil {
		return nil, err
	}

	result, err := s.store.UploadVideoVersion(ctx, projectID, stored, sess.EditorName)
	if err != nil {
		return nil, err
	}
	return s.uploadPayload(ctx, result), nil
}

func (s *Service) uploadPayload(ctx context.Context, result store.UploadResult) map[string]any {
	if s.notifier != nil && result.Project.ClientEmail != "" {
		s.notifier.VersionUploaded(result, s.activeTokenValue(ctx, result.Project.ID))
	}

	payload := map[string]any{
		"project": projectPayload(result.Project),
		"version": s.versionPayload(ctx, result.Version),
	}
	if result.ClosedRound != nil {
		payload["closedRound"] = roundPayload(*result.ClosedRound)
	}
	return payload
}

func (s *Service) OpenRound(ctx context.Context, sess Session, projectID string, videoVersionNumber *int) (map[string]any, error) {
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	round, err := s.store.OpenRevisionRound(ctx, projectID, videoVersionNumber, sess.EditorName)
	if err != nil {
		return nil, err
	}
	return map[string]any{"round": roundPayload(round)}, nil
}

func (s *Service) SubmitRound(ctx context.Context, sess Session, roundID string) (map[string]any, error) {
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedProject(ctx, sess, round.ProjectID); err != nil {
		return nil, err
	}

	result, err := s.store.SubmitRevisionRound(ctx, roundID, sess.EditorName)
	if err != nil {
		return nil, err
	}
	s.notifyRoundSubmitted(ctx, result)
	return submitPayload(result), nil
}

func (s *Service) OverrideScope(ctx context.Context, sess Session, noteID string, input OverrideScopeInput) (map[string]any, error) {
	status := scope.Status(strings.TrimSpace(input.NewStatus))
	if !scope.Valid(status) {
		return nil, domainError(422, "VALIDATION_ERROR", "newStatus must be in_scope or additional_request", nil)
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "reason is required", nil)
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	project, err := s.ownedProject(ctx, sess, note.ProjectID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.OverrideScope(ctx, noteID, status, reason, sess.EditorID, sess.EditorName)
	if err != nil {
		return nil, err
	}
	roundNumber := 0
	if round, err := s.store.GetRound(ctx, note.RoundID); err == nil {
		roundNumber = round.RoundNumber
	}
	s.indexNote(project, updated, roundNumber)
	return map[string]any{"note": notePayload(updated)}, nil
}

func (s *Service) ApproveProject(ctx context.Context, sess Session, projectID string) (map[string]any, error) {
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	result, err := s.store.ApproveProject(ctx, projectID, sess.EditorName)
	if err != nil {
		return nil, err
	}
	s.afterApproval(ctx, result)
	return approvePayload(result), nil
}

func (s *Service) GenerateReviewLink(ctx context.Context, sess Session, projectID string, regenerate bool) (map[string]any, error) {
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	token, err := s.store.GenerateReviewToken(ctx, projectID, regenerate, sess.EditorName)
	if err != nil {
		return nil, err
	}
	return map[string]any{"token": tokenPayload(token, s.cfg.AppURL)}, nil
}

func (s *Service) RevokeReviewLink(ctx context.Context, sess Session, tokenID string) (map[string]any, error) {
	token, err := s.store.GetReviewToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedProject(ctx, sess, token.ProjectID); err != nil {
		return nil, err
	}
	revoked, err := s.store.RevokeReviewToken(ctx, tokenID, sess.EditorName)
	if err != nil {
		return nil, err
	}
	return map[string]any{"token": tokenPayload(revoked, s.cfg.AppURL)}, nil
}

func (s *Service) ExportProject(ctx context.Context, sess Session, projectID string, format export.Format) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(503, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	if _, err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, err
	}
	return s.export.Export(ctx, export.Request{ProjectID: projectID, Format: format})
}

func (s *Service) Search(sess Session, q, filterType, scopeStatus string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q}, nil
	}
	var resultType search.ResultType
	switch filterType {
	case "":
	case string(search.ResultProject):
		resultType = search.ResultProject
	case string(search.ResultNote):
		resultType = search.ResultNote
	default:
		return search.Response{}, domainError(422, "VALIDATION_ERROR", "type must be project or note", nil)
	}
	return s.search.Search(search.Query{
		Text:              q,
		EditorID:          sess.EditorID,
		FilterType:        resultType,
		FilterScopeStatus: scopeStatus,
		Limit:             limit,
		Offset:            offset,
	}), nil
}

// ---- client review (token-facing) ----

func (s *Service) Review(ctx context.Context, token string) (map[string]any, error) {
	view, err := s.store.GetReviewByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"project": map[string]any{
			"title":               view.Project.Title,
			"clientName":          view.Project.ClientName,
			"state":               view.Project.State,
			"allowedRequestTypes": view.Project.AllowedRequestTypes,
			"revisionCap":         view.Project.RevisionCap,
			"revisionUsed":        view.Project.RevisionUsed,
		},
	}
	if view.LatestVersion != nil {
		payload["latestVersion"] = s.versionPayload(ctx, *view.LatestVersion)
	}
	if view.OpenRound != nil {
		round := roundPayload(*view.OpenRound)
		notes := make([]map[string]any, 0, len(view.Notes))
		for _, note := range view.Notes {
			notes = append(notes, notePayload(note))
		}
		round["notes"] = notes
		payload["openRound"] = round
	}
	return payload, nil
}

func (s *Service) ClientAddNote(ctx context.Context, token string, input AddNoteInput) (map[string]any, error) {
	view, err := s.store.GetReviewByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if view.OpenRound == nil {
		return nil, domainError(409, "INVALID_STATE", "No open revision round", nil)
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "body is required", nil)
	}
	if strings.TrimSpace(input.RequestType) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "requestType is required", nil)
	}

	noteInput := store.NoteInput{
		Body:                strings.TrimSpace(input.Body),
		RequestType:         strings.ToLower(strings.TrimSpace(input.RequestType)),
		Timecode:            strings.TrimSpace(input.Timecode),
		ClientMarkedNewIdea: input.ClientMarkedNewIdea,
	}
	if input.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, input.Timestamp)
		if err != nil {
			return nil, domainError(422, "VALIDATION_ERROR", "timestamp must be RFC 3339", nil)
		}
		noteInput.ClientTimestamp = ts
	}

	note, err := s.store.AddNote(ctx, view.OpenRound.ID, noteInput, view.Project.ClientName)
	if err != nil {
		return nil, err
	}
	s.indexNote(view.Project, note, view.OpenRound.RoundNumber)
	return map[string]any{"note": notePayload(note)}, nil
}

func (s *Service) ClientSubmitRound(ctx context.Context, token string) (map[string]any, error) {
	view, err := s.store.GetReviewByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if view.OpenRound == nil {
		return nil, domainError(409, "INVALID_STATE", "No open revision round", nil)
	}

	result, err := s.store.SubmitRevisionRound(ctx, view.OpenRound.ID, view.Project.ClientName)
	if err != nil {
		return nil, err
	}
	s.notifyRoundSubmitted(ctx, result)
	return submitPayload(result), nil
}

func (s *Service) ClientApprove(ctx context.Context, token string) (map[string]any, error) {
	view, err := s.store.GetReviewByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	result, err := s.store.ApproveProject(ctx, view.Project.ID, view.Project.ClientName)
	if err != nil {
		return nil, err
	}
	s.afterApproval(ctx, result)
	return approvePayload(result), nil
}

// ---- shared helpers ----

func (s *Service) ownedProject(ctx context.Context, sess Session, projectID string) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if project.EditorID != sess.EditorID {
		return store.Project{}, domainError(403, "UNAUTHORIZED", "Not authorized", nil)
	}
	return project, nil
}

func (s *Service) activeTokenValue(ctx context.Context, projectID string) string {
	tokens, err := s.store.ListReviewTokens(ctx, projectID)
	if err != nil {
		return ""
	}
	for _, token := range tokens {
		if token.IsActive {
			return token.Token
		}
	}
	return ""
}

func (s *Service) notifyRoundSubmitted(ctx context.Context, result store.SubmitResult) {
	if s.notifier == nil {
		return
	}
	editor, err := s.store.GetEditorByID(ctx, result.Project.EditorID)
	if err != nil {
		return
	}
	s.notifier.RoundSubmitted(result, editor.Email)
}

func (s *Service) afterApproval(ctx context.Context, result store.ApproveResult) {
	if s.notifier != nil {
		if editor, err := s.store.GetEditorByID(ctx, result.Project.EditorID); err == nil {
			s.notifier.ProjectApproved(result, editor.Email)
		}
	}
	s.indexProject(result.Project)
}

func (s *Service) indexProject(project store.Project) {
	if s.search == nil {
		return
	}
	s.search.IndexProject(search.ProjectRecord{
		ID:         project.ID,
		Title:      project.Title,
		ClientName: project.ClientName,
		EditorID:   project.EditorID,
		State:      project.State,
	})
}

func (s *Service) indexNote(project store.Project, note store.Note, roundNumber int) {
	if s.search == nil {
		return
	}
	s.search.IndexNote(search.NoteRecord{
		ID:          note.ID,
		Body:        note.Body,
		RequestType: note.RequestType,
		ScopeStatus: string(note.EffectiveStatus()),
		ProjectID:   project.ID,
		EditorID:    project.EditorID,
		RoundNumber: roundNumber,
	})
}

// resolveVideoURL turns stored object names into presigned links. External
// URLs (anything with a scheme) pass through untouched.
func (s *Service) resolveVideoURL(ctx context.Context, videoURL string) string {
	if s.media == nil || strings.Contains(videoURL, "://") {
		return videoURL
	}
	signed, err := s.media.PlaybackURL(ctx, videoURL, 0)
	if err != nil {
		return videoURL
	}
	return signed
}

// ---- payload builders ----

func projectPayload(project store.Project) map[string]any {
	return map[string]any{
		"id":                  project.ID,
		"editorId":            project.EditorID,
		"title":               project.Title,
		"clientName":          project.ClientName,
		"clientEmail":         project.ClientEmail,
		"allowedRequestTypes": project.AllowedRequestTypes,
		"revisionCap":         project.RevisionCap,
		"revisionUsed":        project.RevisionUsed,
		"state":               project.State,
		"approvedAt":          project.ApprovedAt,
		"createdAt":           project.CreatedAt,
		"updatedAt":           project.UpdatedAt,
	}
}

func (s *Service) versionPayload(ctx context.Context, version store.VideoVersion) map[string]any {
	return map[string]any{
		"id":            version.ID,
		"projectId":     version.ProjectID,
		"versionNumber": version.VersionNumber,
		"videoUrl":      s.resolveVideoURL(ctx, version.VideoURL),
		"uploadedAt":    version.UploadedAt,
	}
}

func roundPayload(round store.RevisionRound) map[string]any {
	return map[string]any{
		"id":                 round.ID,
		"projectId":          round.ProjectID,
		"roundNumber":        round.RoundNumber,
		"videoVersionNumber": round.VideoVersionNumber,
		"status":             round.Status,
		"openedAt":           round.OpenedAt,
		"submittedAt":        round.SubmittedAt,
	}
}

func notePayload(note store.Note) map[string]any {
	payload := map[string]any{
		"id":                   note.ID,
		"roundId":              note.RoundID,
		"projectId":            note.ProjectID,
		"body":                 note.Body,
		"requestType":          note.RequestType,
		"timecode":             note.Timecode,
		"clientMarkedNewIdea":  note.ClientMarkedNewIdea,
		"scopeStatus":          note.ScopeStatus,
		"effectiveScopeStatus": note.EffectiveStatus(),
		"clientTimestamp":      note.ClientTimestamp,
		"createdAt":            note.CreatedAt,
	}
	if note.OverriddenStatus != nil {
		payload["overriddenStatus"] = *note.OverriddenStatus
		payload["overrideReason"] = note.OverrideReason
		payload["overrideEditorId"] = note.OverrideEditorID
		payload["overrideAt"] = note.OverrideAt
	}
	return payload
}

func tokenPayload(token store.ReviewToken, appURL string) map[string]any {
	payload := map[string]any{
		"id":         token.ID,
		"projectId":  token.ProjectID,
		"isActive":   token.IsActive,
		"createdAt":  token.CreatedAt,
		"lastUsedAt": token.LastUsedAt,
		"revokedAt":  token.RevokedAt,
	}
	if token.IsActive {
		payload["token"] = token.Token
		payload["reviewUrl"] = strings.TrimRight(appURL, "/") + "/review/" + token.Token
	}
	return payload
}

func submitPayload(result store.SubmitResult) map[string]any {
	return map[string]any{
		"project":    projectPayload(result.Project),
		"round":      roundPayload(result.Round),
		"noteCount":  result.NoteCount,
		"capReached": result.CapReached,
	}
}

func approvePayload(result store.ApproveResult) map[string]any {
	return map[string]any{
		"project":       projectPayload(result.Project),
		"revokedTokens": result.RevokedTokens,
	}
}
