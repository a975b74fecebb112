package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderVerificationTemplate(t *testing.T) {
	data := VerificationData{
		AppName:         "ScopeLock",
		UserName:        "Test Editor",
		VerificationURL: "https://example.com/verify?token=abc123",
	}

	html, err := renderTemplate(verificationEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "ScopeLock") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test Editor") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/verify?token=abc123") {
		t.Error("template should contain verification URL")
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	data := PasswordResetData{
		AppName:  "ScopeLock",
		UserName: "Test Editor",
		ResetURL: "https://example.com/reset?token=xyz789",
	}

	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "ScopeLock") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test Editor") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/reset?token=xyz789") {
		t.Error("template should contain reset URL")
	}
	if !strings.Contains(html, "1 hour") {
		t.Error("template should mention expiration time")
	}
}

func TestRenderVersionReadyTemplate(t *testing.T) {
	data := ReviewData{
		AppName:       "ScopeLock",
		ClientName:    "Dana",
		ProjectTitle:  "Brand Film",
		VersionNumber: 3,
		ReviewURL:     "https://example.com/review/tok123",
	}

	html, err := renderTemplate(versionReadyEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	for _, want := range []string{"Dana", "Brand Film", "Version 3", "https://example.com/review/tok123"} {
		if !strings.Contains(html, want) {
			t.Errorf("template should contain %q", want)
		}
	}
}

func TestRenderRevisionNotesTemplatePluralizes(t *testing.T) {
	single, err := renderTemplate(revisionNotesEmailTemplate, ReviewData{
		AppName: "ScopeLock", ClientName: "Dana", ProjectTitle: "Brand Film", RoundNumber: 1, NoteCount: 1,
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(single, "1 note") || strings.Contains(single, "1 notes") {
		t.Error("single note should not be pluralized")
	}

	several, err := renderTemplate(revisionNotesEmailTemplate, ReviewData{
		AppName: "ScopeLock", ClientName: "Dana", ProjectTitle: "Brand Film", RoundNumber: 2, NoteCount: 4,
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(several, "4 notes") {
		t.Error("several notes should be pluralized")
	}
}

func TestRenderApprovalAndCompletionTemplates(t *testing.T) {
	data := ReviewData{
		AppName:       "ScopeLock",
		ClientName:    "Dana",
		ProjectTitle:  "Brand Film",
		VersionNumber: 5,
		ReviewURL:     "https://example.com/review/tok123",
	}

	approval, err := renderTemplate(approvalRequestEmailTemplate, data)
	if err != nil {
		t.Fatalf("render approval template: %v", err)
	}
	if !strings.Contains(approval, "approve") && !strings.Contains(approval, "Approve") {
		t.Error("approval template should ask for approval")
	}

	complete, err := renderTemplate(revisionsCompleteEmailTemplate, data)
	if err != nil {
		t.Fatalf("render revisions complete template: %v", err)
	}
	if !strings.Contains(complete, "Brand Film") {
		t.Error("completion template should name the project")
	}

	approved, err := renderTemplate(projectApprovedEmailTemplate, data)
	if err != nil {
		t.Fatalf("render project approved template: %v", err)
	}
	if !strings.Contains(approved, "Dana") {
		t.Error("approved template should name the client")
	}
}
