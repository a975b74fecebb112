package search

import (
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
)

func rawHit(t *testing.T, fields map[string]any) meili.Hit {
	t.Helper()
	hit := meili.Hit{}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal %s: %v", key, err)
		}
		hit[key] = raw
	}
	return hit
}

func TestIndexToResultType(t *testing.T) {
	if got := indexToResultType(idxProjects); got != ResultProject {
		t.Errorf("projects index mapped to %q", got)
	}
	if got := indexToResultType(idxNotes); got != ResultNote {
		t.Errorf("notes index mapped to %q", got)
	}
	if got := indexToResultType("scopelock_unknown"); got != "" {
		t.Errorf("unknown index mapped to %q", got)
	}
}

func TestHitToResultProjectPrefersHighlight(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":         "prj_1",
		"editorId":   "edt_1",
		"title":      "Spring Promo",
		"clientName": "Acme Films",
		"_formatted": map[string]string{
			"title":      "<em>Spring</em> Promo",
			"clientName": "",
		},
	})

	r := hitToResult(hit, ResultProject)
	if r.Type != ResultProject {
		t.Errorf("type = %q", r.Type)
	}
	if r.Title != "<em>Spring</em> Promo" {
		t.Errorf("title = %q, want the highlighted variant", r.Title)
	}
	if r.Snippet != "Acme Films" {
		t.Errorf("snippet = %q, want fallback to the plain field", r.Snippet)
	}
	if r.ProjectID != "prj_1" {
		t.Errorf("projectID = %q, want the project's own id", r.ProjectID)
	}
}

func TestHitToResultNote(t *testing.T) {
	hit := rawHit(t, map[string]any{
		"id":          "note_1",
		"projectId":   "prj_1",
		"editorId":    "edt_1",
		"requestType": "color",
		"body":        "Warm up the grade",
		"scopeStatus": "in_scope",
	})

	r := hitToResult(hit, ResultNote)
	if r.Title != "color" || r.Snippet != "Warm up the grade" {
		t.Errorf("result = %+v", r)
	}
	if r.ProjectID != "prj_1" {
		t.Errorf("projectID = %q", r.ProjectID)
	}
	if r.ScopeStatus != "in_scope" {
		t.Errorf("scopeStatus = %q", r.ScopeStatus)
	}
}

func TestDecodeStringIgnoresNonStrings(t *testing.T) {
	hit := rawHit(t, map[string]any{"roundNumber": 3})
	if got := decodeString(hit, "roundNumber"); got != "" {
		t.Errorf("decodeString on a number = %q, want empty", got)
	}
	if got := decodeString(hit, "missing"); got != "" {
		t.Errorf("decodeString on a missing key = %q, want empty", got)
	}
}

func TestFirstNonBlank(t *testing.T) {
	if got := firstNonBlank("", "  ", "value", "later"); got != "value" {
		t.Errorf("firstNonBlank = %q", got)
	}
	if got := firstNonBlank("", "   "); got != "" {
		t.Errorf("firstNonBlank on blanks = %q", got)
	}
}
