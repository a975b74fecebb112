// Package authpw provides email/password authentication with verification.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"scopelock/api/internal/auth"
	"scopelock/api/internal/store"
	"scopelock/api/internal/util"
)

// Service provides email/password authentication for editor accounts.
type Service struct {
	store EditorStore
}

// EditorStore defines the storage interface for auth
type EditorStore interface {
	GetEditorByEmail(ctx context.Context, email string) (store.Editor, error)
	GetEditorByID(ctx context.Context, id string) (store.Editor, error)
	InsertEditor(ctx context.Context, editor store.Editor) error
	MarkEditorVerified(ctx context.Context, verificationToken string) (store.Editor, error)
	SavePasswordReset(ctx context.Context, editorID, tokenHash string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (store.Editor, error)
}

// NewService creates a new auth service
func NewService(store EditorStore) *Service {
	return &Service{store: store}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// SignUpResponse contains sign-up result
type SignUpResponse struct {
	EditorID            string
	VerificationToken   string
	RequiresEmailVerify bool
}

// SignUp creates a new editor account
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return nil, errors.New("email, password, and display name are required")
	}

	if len(req.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	// Check if email already exists
	_, err := s.store.GetEditorByEmail(ctx, req.Email)
	if err == nil {
		return nil, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verificationToken := util.NewToken()
	expiresAt := time.Now().Add(24 * time.Hour)

	editor := store.Editor{
		ID:                    util.NewID("edt"),
		DisplayName:           req.DisplayName,
		Email:                 req.Email,
		PasswordHash:          string(hash),
		IsEmailVerified:       false,
		VerificationToken:     verificationToken,
		VerificationExpiresAt: &expiresAt,
	}

	if err := s.store.InsertEditor(ctx, editor); err != nil {
		return nil, fmt.Errorf("create editor: %w", err)
	}

	return &SignUpResponse{
		EditorID:            editor.ID,
		VerificationToken:   verificationToken,
		RequiresEmailVerify: true,
	}, nil
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignInResponse contains sign-in result
type SignInResponse struct {
	Editor         store.Editor
	RequiresVerify bool
}

// SignIn authenticates an editor
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errors.New("email and password are required")
	}

	editor, err := s.store.GetEditorByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}
	if editor.DeactivatedAt != nil {
		return nil, errors.New("invalid email or password")
	}

	// The password is checked before the verification gate so an unverified
	// response never confirms a password guess.
	if err := bcrypt.CompareHashAndPassword([]byte(editor.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	if !editor.IsEmailVerified {
		return &SignInResponse{
			Editor:         editor,
			RequiresVerify: true,
		}, nil
	}

	return &SignInResponse{
		Editor:         editor,
		RequiresVerify: false,
	}, nil
}

// VerifyEmail verifies an email address using a token
func (s *Service) VerifyEmail(ctx context.Context, token string) (store.Editor, error) {
	if token == "" {
		return store.Editor{}, errors.New("verification token required")
	}

	editor, err := s.store.MarkEditorVerified(ctx, token)
	if err != nil {
		return store.Editor{}, errors.New("invalid or expired verification token")
	}
	return editor, nil
}

// RequestPasswordReset creates a password reset token. The empty return for
// unknown emails keeps account existence private.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	editor, err := s.store.GetEditorByEmail(ctx, email)
	if err != nil {
		return "", nil
	}

	token := util.NewToken()
	expiresAt := time.Now().Add(1 * time.Hour)
	if err := s.store.SavePasswordReset(ctx, editor.ID, auth.HashToken(token), expiresAt); err != nil {
		return "", err
	}

	return token, nil
}

// ResetPasswordRequest contains password reset parameters
type ResetPasswordRequest struct {
	Token       string
	NewPassword string
}

// ResetPassword resets an editor's password using a reset token
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Token == "" || req.NewPassword == "" {
		return errors.New("token and new password are required")
	}

	if len(req.NewPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.store.ConsumePasswordReset(ctx, auth.HashToken(req.Token), string(hash)); err != nil {
		return errors.New("invalid or expired reset token")
	}

	return nil
}
