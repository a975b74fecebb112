package store

import (
	"time"

	"scopelock/api/internal/scope"
)

type Editor struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Project struct {
	ID                  string
	EditorID            string
	Title               string
	ClientName          string
	ClientEmail         string
	AllowedRequestTypes []string
	RevisionCap         int
	RevisionUsed        int
	State               string
	ApprovedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const (
	ProjectStateActive   = "active"
	ProjectStateApproved = "approved"
)

type VideoVersion struct {
	ID            string
	ProjectID     string
	VersionNumber int
	VideoURL      string
	UploadedAt    time.Time
}

type RevisionRound struct {
	ID          string
	ProjectID   string
	RoundNumber int
	// VideoVersionNumber links the round to the cut the client reviewed,
	// when the editor named one.
	VideoVersionNumber *int
	Status             string
	OpenedAt           time.Time
	SubmittedAt        *time.Time
}

const (
	RoundStatusOpen      = "open"
	RoundStatusSubmitted = "submitted"
)

type Note struct {
	ID                  string
	RoundID             string
	ProjectID           string
	Body                string
	RequestType         string
	Timecode            string
	ClientMarkedNewIdea bool
	ScopeStatus         scope.Status
	OverriddenStatus    *scope.Status
	OverrideReason      string
	OverrideEditorID    string
	OverrideAt          *time.Time
	ClientTimestamp     time.Time
	CreatedAt           time.Time
}

// EffectiveStatus is the classification after any editor override.
func (n Note) EffectiveStatus() scope.Status {
	return scope.Effective(n.ScopeStatus, n.OverriddenStatus)
}

type ReviewToken struct {
	ID         string
	ProjectID  string
	Token      string
	IsActive   bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

type ActivityEvent struct {
	ID        int64
	ProjectID string
	EventType string
	ActorName string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Activity event types, one per recorded transition.
const (
	EventNoteAdded            = "note_added"
	EventScopeOverridden      = "scope_overridden"
	EventRevisionRoundOpened  = "revision_round_opened"
	EventRevisionRoundSubmit  = "revision_round_submitted"
	EventVideoUploaded        = "video_uploaded"
	EventProjectApproved      = "project_approved"
	EventReviewLinkGenerated  = "review_link_generated"
	EventReviewLinkRevoked    = "review_link_revoked"
)

// ReviewView is the client-facing projection resolved from a review token.
type ReviewView struct {
	Project       Project
	LatestVersion *VideoVersion
	OpenRound     *RevisionRound
	Notes         []Note
}

// ProjectDetail is the editor dashboard projection.
type ProjectDetail struct {
	Project  Project
	Versions []VideoVersion
	Rounds   []RevisionRound
	Notes    []Note
	Tokens   []ReviewToken
}

// SubmitResult carries what the notifier needs after a round submit.
type SubmitResult struct {
	Project     Project
	Round       RevisionRound
	NoteCount   int
	CapReached  bool
}

// UploadResult carries what the notifier needs after a version upload.
type UploadResult struct {
	Project     Project
	Version     VideoVersion
	ClosedRound *RevisionRound
	OverCap     bool
}

// ApproveResult carries what the notifier needs after an approval.
type ApproveResult struct {
	Project       Project
	RevokedTokens int
}
