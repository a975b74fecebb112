package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"scopelock/api/internal/store"
)

// mockEditorStore is a mock implementation of EditorStore for testing
type mockEditorStore struct {
	editors    map[string]store.Editor
	emailIndex map[string]string // email -> editorID
	resets     map[string]struct {
		editorID  string
		expiresAt time.Time
		used      bool
	}
}

func newMockEditorStore() *mockEditorStore {
	return &mockEditorStore{
		editors:    make(map[string]store.Editor),
		emailIndex: make(map[string]string),
		resets: make(map[string]struct {
			editorID  string
			expiresAt time.Time
			used      bool
		}),
	}
}

func (m *mockEditorStore) GetEditorByEmail(ctx context.Context, email string) (store.Editor, error) {
	if editorID, ok := m.emailIndex[email]; ok {
		return m.editors[editorID], nil
	}
	return store.Editor{}, errors.New("editor not found")
}

func (m *mockEditorStore) GetEditorByID(ctx context.Context, id string) (store.Editor, error) {
	if editor, ok := m.editors[id]; ok {
		return editor, nil
	}
	return store.Editor{}, errors.New("editor not found")
}

func (m *mockEditorStore) InsertEditor(ctx context.Context, editor store.Editor) error {
	m.editors[editor.ID] = editor
	m.emailIndex[editor.Email] = editor.ID
	return nil
}

func (m *mockEditorStore) MarkEditorVerified(ctx context.Context, verificationToken string) (store.Editor, error) {
	for id, editor := range m.editors {
		if editor.VerificationToken == verificationToken && verificationToken != "" {
			editor.IsEmailVerified = true
			editor.VerificationToken = ""
			m.editors[id] = editor
			return editor, nil
		}
	}
	return store.Editor{}, errors.New("invalid token")
}

func (m *mockEditorStore) SavePasswordReset(ctx context.Context, editorID, tokenHash string, expiresAt time.Time) error {
	m.resets[tokenHash] = struct {
		editorID  string
		expiresAt time.Time
		used      bool
	}{editorID: editorID, expiresAt: expiresAt, used: false}
	return nil
}

func (m *mockEditorStore) ConsumePasswordReset(ctx context.Context, tokenHash, newPasswordHash string) (store.Editor, error) {
	reset, ok := m.resets[tokenHash]
	if !ok || reset.used || time.Now().After(reset.expiresAt) {
		return store.Editor{}, errors.New("invalid or expired token")
	}
	reset.used = true
	m.resets[tokenHash] = reset

	editor := m.editors[reset.editorID]
	editor.PasswordHash = newPasswordHash
	m.editors[reset.editorID] = editor
	return editor, nil
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockEditorStore()
	svc := NewService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "test@example.com",
			Password:    "password123",
			DisplayName: "Test Editor",
		}

		resp, err := svc.SignUp(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if resp.EditorID == "" {
			t.Error("expected EditorID to be set")
		}
		if resp.VerificationToken == "" {
			t.Error("expected VerificationToken to be set")
		}
		if !resp.RequiresEmailVerify {
			t.Error("expected RequiresEmailVerify to be true")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "test@example.com",
			Password:    "password123",
			DisplayName: "Test Editor 2",
		}

		_, err := svc.SignUp(ctx, req)
		if err == nil {
			t.Error("expected error for duplicate email")
		}
	})

	t.Run("short password", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "test2@example.com",
			Password:    "short",
			DisplayName: "Test Editor",
		}

		_, err := svc.SignUp(ctx, req)
		if err == nil {
			t.Error("expected error for short password")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{})
		if err == nil {
			t.Error("expected error for missing fields")
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockEditorStore()
	svc := NewService(mockStore)

	// Create a verified editor
	req := SignUpRequest{
		Email:       "test@example.com",
		Password:    "password123",
		DisplayName: "Test Editor",
	}
	resp, _ := svc.SignUp(ctx, req)
	svc.VerifyEmail(ctx, resp.VerificationToken)

	t.Run("successful sign in", func(t *testing.T) {
		signInReq := SignInRequest{
			Email:    "test@example.com",
			Password: "password123",
		}

		signInResp, err := svc.SignIn(ctx, signInReq)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if signInResp.Editor.Email != "test@example.com" {
			t.Errorf("expected email test@example.com, got %s", signInResp.Editor.Email)
		}
		if signInResp.RequiresVerify {
			t.Error("expected RequiresVerify to be false for verified editor")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		req := SignInRequest{
			Email:    "test@example.com",
			Password: "wrongpassword",
		}

		_, err := svc.SignIn(ctx, req)
		if err == nil {
			t.Error("expected error for wrong password")
		}
	})

	t.Run("non-existent editor", func(t *testing.T) {
		req := SignInRequest{
			Email:    "nonexistent@example.com",
			Password: "password123",
		}

		_, err := svc.SignIn(ctx, req)
		if err == nil {
			t.Error("expected error for non-existent editor")
		}
	})

	t.Run("unverified email", func(t *testing.T) {
		signUpReq := SignUpRequest{
			Email:       "unverified@example.com",
			Password:    "password123",
			DisplayName: "Unverified Editor",
		}
		svc.SignUp(ctx, signUpReq)

		signInReq := SignInRequest{
			Email:    "unverified@example.com",
			Password: "password123",
		}

		resp, err := svc.SignIn(ctx, signInReq)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.RequiresVerify {
			t.Error("expected RequiresVerify to be true for unverified editor")
		}
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockEditorStore()
	svc := NewService(mockStore)

	req := SignUpRequest{
		Email:       "test@example.com",
		Password:    "password123",
		DisplayName: "Test Editor",
	}
	resp, _ := svc.SignUp(ctx, req)

	t.Run("valid token", func(t *testing.T) {
		_, err := svc.VerifyEmail(ctx, resp.VerificationToken)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		editor, _ := mockStore.GetEditorByID(ctx, resp.EditorID)
		if !editor.IsEmailVerified {
			t.Error("expected editor to be verified")
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := svc.VerifyEmail(ctx, "invalid-token")
		if err == nil {
			t.Error("expected error for invalid token")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.VerifyEmail(ctx, "")
		if err == nil {
			t.Error("expected error for empty token")
		}
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockEditorStore()
	svc := NewService(mockStore)

	signUpReq := SignUpRequest{
		Email:       "test@example.com",
		Password:    "password123",
		DisplayName: "Test Editor",
	}
	resp, _ := svc.SignUp(ctx, signUpReq)
	svc.VerifyEmail(ctx, resp.VerificationToken)

	t.Run("request reset for existing editor", func(t *testing.T) {
		token, err := svc.RequestPasswordReset(ctx, "test@example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token == "" {
			t.Error("expected token to be generated")
		}
	})

	t.Run("request reset for non-existent editor - no error", func(t *testing.T) {
		_, err := svc.RequestPasswordReset(ctx, "nonexistent@example.com")
		if err != nil {
			t.Errorf("expected no error for non-existent editor, got: %v", err)
		}
	})

	t.Run("reset password with valid token", func(t *testing.T) {
		token, _ := svc.RequestPasswordReset(ctx, "test@example.com")

		err := svc.ResetPassword(ctx, ResetPasswordRequest{
			Token:       token,
			NewPassword: "newpassword123",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Verify old password doesn't work
		_, err = svc.SignIn(ctx, SignInRequest{
			Email:    "test@example.com",
			Password: "password123",
		})
		if err == nil {
			t.Error("expected old password to not work")
		}

		// Verify new password works
		_, err = svc.SignIn(ctx, SignInRequest{
			Email:    "test@example.com",
			Password: "newpassword123",
		})
		if err != nil {
			t.Errorf("expected new password to work: %v", err)
		}
	})

	t.Run("reset with invalid token", func(t *testing.T) {
		err := svc.ResetPassword(ctx, ResetPasswordRequest{
			Token:       "invalid-token",
			NewPassword: "newpassword123",
		})
		if err == nil {
			t.Error("expected error for invalid token")
		}
	})

	t.Run("reset with short password", func(t *testing.T) {
		err := svc.ResetPassword(ctx, ResetPasswordRequest{
			Token:       "some-token",
			NewPassword: "short",
		})
		if err == nil {
			t.Error("expected error for short password")
		}
	})
}
