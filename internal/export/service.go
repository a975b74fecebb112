package export

import (
	"context"
	"fmt"

	"scopelock/api/internal/scope"
	"scopelock/api/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetProjectDetail(ctx context.Context, projectID string) (store.ProjectDetail, error)
}

// Service renders the scope report for a project. The report is the paper
// trail editors hand clients: every note, its automatic classification, and
// every override with its justification.
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a scope report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	detail, err := s.store.GetProjectDetail(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	data := buildTemplateData(detail)

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, detail.Project.Title)
	case FormatDOCX:
		return exportDOCX(html, detail.Project.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func buildTemplateData(detail store.ProjectDetail) TemplateData {
	project := detail.Project

	data := TemplateData{
		Title:        project.Title,
		ClientName:   project.ClientName,
		State:        project.State,
		RevisionCap:  project.RevisionCap,
		RevisionUsed: project.RevisionUsed,
		AllowedTypes: project.AllowedRequestTypes,
		CreatedAt:    project.CreatedAt,
		ApprovedAt:   project.ApprovedAt,
	}

	for _, version := range detail.Versions {
		data.Versions = append(data.Versions, TemplateVersion{
			Number:     version.VersionNumber,
			UploadedAt: version.UploadedAt,
		})
	}

	notesByRound := make(map[string][]store.Note)
	for _, note := range detail.Notes {
		notesByRound[note.RoundID] = append(notesByRound[note.RoundID], note)
	}

	for _, round := range detail.Rounds {
		tr := TemplateRound{
			Number:      round.RoundNumber,
			Status:      round.Status,
			OpenedAt:    round.OpenedAt,
			SubmittedAt: round.SubmittedAt,
		}
		for _, note := range notesByRound[round.ID] {
			tn := TemplateNote{
				Body:           note.Body,
				RequestType:    note.RequestType,
				Timecode:       note.Timecode,
				Original:       string(note.ScopeStatus),
				Effective:      string(note.EffectiveStatus()),
				OverrideReason: note.OverrideReason,
			}
			tn.Overridden = note.OverriddenStatus != nil
			if note.EffectiveStatus() == scope.StatusAdditional {
				data.AdditionalCount++
			} else {
				data.InScopeCount++
			}
			tr.Notes = append(tr.Notes, tn)
		}
		data.Rounds = append(data.Rounds, tr)
	}

	return data
}
