// Package notify fans project transitions out to email. Sends happen after
// the owning transaction commits and never affect its outcome: a failed send
// is logged and dropped.
package notify

import (
	"fmt"
	"log"

	"scopelock/api/internal/email"
	"scopelock/api/internal/store"
)

// Service decides which email each transition produces.
type Service struct {
	email  *email.Service
	appURL string
}

func NewService(emailSvc *email.Service, appURL string) *Service {
	return &Service{email: emailSvc, appURL: appURL}
}

func (s *Service) reviewURL(token string) string {
	return fmt.Sprintf("%s/review/%s", s.appURL, token)
}

func (s *Service) skip() bool {
	if s.email == nil || !s.email.IsConfigured() {
		log.Println("notify: email not configured, skipping notification")
		return true
	}
	return false
}

// VersionUploaded mails the client a review link for the new cut. Once the
// included revisions are spent the invite becomes an approval request.
func (s *Service) VersionUploaded(result store.UploadResult, reviewToken string) {
	if s.skip() {
		return
	}
	project := result.Project
	url := s.reviewURL(reviewToken)

	var err error
	if result.OverCap {
		err = s.email.SendApprovalRequestEmail(project.ClientEmail, project.ClientName, project.Title, result.Version.VersionNumber, url)
	} else {
		err = s.email.SendVersionReadyEmail(project.ClientEmail, project.ClientName, project.Title, result.Version.VersionNumber, url)
	}
	if err != nil {
		log.Printf("notify: version uploaded email for project %s: %v", project.ID, err)
	}
}

// RoundSubmitted mails the editor the note summary, and the client a
// completion notice when the submit consumed the last included revision.
func (s *Service) RoundSubmitted(result store.SubmitResult, editorEmail string) {
	if s.skip() {
		return
	}
	project := result.Project

	if err := s.email.SendRevisionNotesEmail(editorEmail, project.ClientName, project.Title, result.Round.RoundNumber, result.NoteCount); err != nil {
		log.Printf("notify: revision notes email for project %s: %v", project.ID, err)
	}

	if result.CapReached {
		if err := s.email.SendRevisionsCompleteEmail(project.ClientEmail, project.ClientName, project.Title); err != nil {
			log.Printf("notify: revisions complete email for project %s: %v", project.ID, err)
		}
	}
}

// ProjectApproved confirms the sign-off to the editor.
func (s *Service) ProjectApproved(result store.ApproveResult, editorEmail string) {
	if s.skip() {
		return
	}
	project := result.Project
	if err := s.email.SendProjectApprovedEmail(editorEmail, project.ClientName, project.Title); err != nil {
		log.Printf("notify: project approved email for project %s: %v", project.ID, err)
	}
}

// EditorSignedUp mails the account verification link.
func (s *Service) EditorSignedUp(editorEmail, displayName, verificationToken string) {
	if s.skip() {
		return
	}
	url := fmt.Sprintf("%s/verify-email?token=%s", s.appURL, verificationToken)
	if err := s.email.SendVerificationEmail(editorEmail, displayName, url); err != nil {
		log.Printf("notify: verification email for %s: %v", editorEmail, err)
	}
}

// PasswordResetRequested mails the reset link.
func (s *Service) PasswordResetRequested(editorEmail, displayName, resetToken string) {
	if s.skip() {
		return
	}
	url := fmt.Sprintf("%s/reset-password?token=%s", s.appURL, resetToken)
	if err := s.email.SendPasswordResetEmail(editorEmail, displayName, url); err != nil {
		log.Printf("notify: password reset email for %s: %v", editorEmail, err)
	}
}
