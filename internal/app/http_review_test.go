package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scopelock/api/internal/scope"
	"scopelock/api/internal/store"
)

func reviewViewWithOpenRound() store.ReviewView {
	project := ownedTestProject()
	project.RevisionUsed = 1
	return store.ReviewView{
		Project:       project,
		LatestVersion: &store.VideoVersion{ID: "vid_2", ProjectID: "prj_1", VersionNumber: 2, VideoURL: "https://cdn.example.com/v2.mp4"},
		OpenRound:     &store.RevisionRound{ID: "rnd_2", ProjectID: "prj_1", RoundNumber: 2, Status: store.RoundStatusOpen},
		Notes: []store.Note{
			{ID: "note_1", RoundID: "rnd_2", ProjectID: "prj_1", Body: "Fix the grade", RequestType: "color", ScopeStatus: scope.StatusInScope},
		},
	}
}

func TestReviewPageByToken(t *testing.T) {
	fs := &fakeStore{
		getReviewByTokenFn: func(_ context.Context, token string) (store.ReviewView, error) {
			if token != "live-token" {
				t.Errorf("looked up token %q", token)
			}
			return reviewViewWithOpenRound(), nil
		},
	}
	handler := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodGet, "/review/live-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	project, ok := body["project"].(map[string]any)
	if !ok {
		t.Fatal("expected project payload")
	}
	if project["title"] != "Spring Promo" {
		t.Errorf("title = %v", project["title"])
	}
	if project["revisionUsed"] != float64(1) {
		t.Errorf("revisionUsed = %v, want 1", project["revisionUsed"])
	}
	openRound, ok := body["openRound"].(map[string]any)
	if !ok {
		t.Fatal("expected openRound payload")
	}
	notes, ok := openRound["notes"].([]any)
	if !ok || len(notes) != 1 {
		t.Errorf("notes = %v, want one entry", openRound["notes"])
	}
	if body["latestVersion"] == nil {
		t.Error("expected latestVersion payload")
	}
}

func TestReviewPageUnknownToken(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/review/stale-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", body["code"])
	}
}

func TestReviewAddNoteWithoutOpenRound(t *testing.T) {
	fs := &fakeStore{
		getReviewByTokenFn: func(_ context.Context, token string) (store.ReviewView, error) {
			return store.ReviewView{Project: ownedTestProject()}, nil
		},
	}
	handler := newTestHandler(fs)

	payload := strings.NewReader(`{"body":"Fix the grade","requestType":"color"}`)
	req := httptest.NewRequest(http.MethodPost, "/review/live-token/notes", payload)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "INVALID_STATE" {
		t.Errorf("code = %v, want INVALID_STATE", body["code"])
	}
	if body["error"] != "No open revision round" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestReviewAddNoteCreated(t *testing.T) {
	fs := &fakeStore{
		getReviewByTokenFn: func(_ context.Context, token string) (store.ReviewView, error) {
			return reviewViewWithOpenRound(), nil
		},
		addNoteFn: func(_ context.Context, roundID string, input store.NoteInput, actorName string) (store.Note, error) {
			return store.Note{
				ID:          "note_2",
				RoundID:     roundID,
				ProjectID:   "prj_1",
				Body:        input.Body,
				RequestType: input.RequestType,
				ScopeStatus: scope.StatusInScope,
			}, nil
		},
	}
	handler := newTestHandler(fs)

	payload := strings.NewReader(`{"body":"Tighten the intro","requestType":"cut"}`)
	req := httptest.NewRequest(http.MethodPost, "/review/live-token/notes", payload)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	note, ok := body["note"].(map[string]any)
	if !ok {
		t.Fatal("expected note payload")
	}
	if note["body"] != "Tighten the intro" {
		t.Errorf("body = %v", note["body"])
	}
}

func TestReviewSubmitQuotaExceeded(t *testing.T) {
	fs := &fakeStore{
		getReviewByTokenFn: func(_ context.Context, token string) (store.ReviewView, error) {
			return reviewViewWithOpenRound(), nil
		},
		submitRoundFn: func(context.Context, string, string) (store.SubmitResult, error) {
			return store.SubmitResult{}, &store.RuleViolation{Kind: store.KindQuotaExceeded, Message: "Included Revisions Complete"}
		},
	}
	handler := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodPost, "/review/live-token/submit", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "QUOTA_EXCEEDED" {
		t.Errorf("code = %v, want QUOTA_EXCEEDED", body["code"])
	}
	if body["error"] != "Included Revisions Complete" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestReviewApprove(t *testing.T) {
	approvedBy := ""
	fs := &fakeStore{
		getReviewByTokenFn: func(_ context.Context, token string) (store.ReviewView, error) {
			return store.ReviewView{Project: ownedTestProject()}, nil
		},
		approveProjectFn: func(_ context.Context, projectID, actorName string) (store.ApproveResult, error) {
			approvedBy = actorName
			project := ownedTestProject()
			project.State = store.ProjectStateApproved
			return store.ApproveResult{Project: project, RevokedTokens: 1}, nil
		},
	}
	handler := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodPost, "/review/live-token/approve", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if approvedBy != "Acme Films" {
		t.Errorf("approved by %q, want the client name", approvedBy)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	project := body["project"].(map[string]any)
	if project["state"] != store.ProjectStateApproved {
		t.Errorf("state = %v, want approved", project["state"])
	}
	if body["revokedTokens"] != float64(1) {
		t.Errorf("revokedTokens = %v, want 1", body["revokedTokens"])
	}
}

func TestReviewApproveBlockedByOpenRound(t *testing.T) {
	fs := &fakeStore{
		getReviewByTokenFn: func(_ context.Context, token string) (store.ReviewView, error) {
			return reviewViewWithOpenRound(), nil
		},
		approveProjectFn: func(context.Context, string, string) (store.ApproveResult, error) {
			return store.ApproveResult{}, &store.RuleViolation{Kind: store.KindInvalidState, Message: "A revision round is still open"}
		},
	}
	handler := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodPost, "/review/live-token/approve", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "INVALID_STATE" {
		t.Errorf("code = %v, want INVALID_STATE", body["code"])
	}
}
