package dto

import (
	"testing"
	"time"

	"github.com/cesargomez89/flixetl/internal/domain"
	"github.com/cesargomez89/flixetl/internal/normalize"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "rules", Message: "is required"}
	if err.Error() != "rules: is required" {
		t.Errorf("Error() = %q, want %q", err.Error(), "rules: is required")
	}
}

func TestToMap(t *testing.T) {
	errs := []ValidationError{
		{Field: "rules[0].category", Message: "is required"},
		{Field: "rules[1].keywords", Message: "at least one keyword is required"},
	}
	m := ToMap(errs)
	if len(m) != 2 {
		t.Errorf("ToMap() returned %d items, want 2", len(m))
	}
	if m["rules[0].category"] != "is required" {
		t.Errorf("ToMap()[rules[0].category] = %q", m["rules[0].category"])
	}
}

func TestToResponse(t *testing.T) {
	errs := []ValidationError{
		{Field: "a", Message: "is required"},
		{Field: "b", Message: "invalid"},
	}
	if resp := ToResponse(errs); resp != "a: is required; b: invalid" {
		t.Errorf("ToResponse() = %q", resp)
	}
}

func TestCategoryRulesRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      CategoryRulesRequest
		wantErrs int
	}{
		{"empty", CategoryRulesRequest{}, 1},
		{"valid", CategoryRulesRequest{{Category: "Drama", Keywords: []string{"Drama", "Dramas"}}}, 0},
		{"missing category", CategoryRulesRequest{{Category: " ", Keywords: []string{"x"}}}, 1},
		{"comma in category", CategoryRulesRequest{{Category: "Sci-Fi,Fantasy", Keywords: []string{"Sci-Fi"}}}, 1},
		{"no keywords", CategoryRulesRequest{{Category: "Drama"}}, 1},
		{"blank keyword", CategoryRulesRequest{{Category: "Drama", Keywords: []string{"Drama", ""}}}, 1},
		{"duplicate category", CategoryRulesRequest{
			{Category: "Drama", Keywords: []string{"Drama"}},
			{Category: "drama", Keywords: []string{"Dramas"}},
		}, 1},
		{"default vocabulary", CategoryRulesRequest(normalize.DefaultCategoryRules), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.req.Validate()
			if len(errs) != tt.wantErrs {
				t.Errorf("Validate() returned %d errors, want %d: %v", len(errs), tt.wantErrs, errs)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                string
		page, size, total   int
		wantPage, wantPages int
		wantPrev, wantNext  bool
		wantOffset          int
	}{
		{"first page", 1, 10, 25, 1, 3, false, true, 0},
		{"middle page", 2, 10, 25, 2, 3, true, true, 10},
		{"past the end", 9, 10, 25, 3, 3, true, false, 20},
		{"no items", 1, 10, 0, 1, 1, false, false, 0},
		{"defaults", 0, 0, 120, 1, 3, false, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.size, tt.total)
			if p.CurrentPage != tt.wantPage || p.TotalPages != tt.wantPages {
				t.Errorf("page %d of %d, want %d of %d", p.CurrentPage, p.TotalPages, tt.wantPage, tt.wantPages)
			}
			if p.HasPrev != tt.wantPrev || p.HasNext != tt.wantNext {
				t.Errorf("prev/next = %v/%v", p.HasPrev, p.HasNext)
			}
			if p.Offset() != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", p.Offset(), tt.wantOffset)
			}
		})
	}
}

func TestNewRunResponse(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	msg := "failed tasks: [load_database]"
	taskErr := "load titles batch 3: constraint failed"

	resp := NewRunResponse(&domain.PipelineRun{
		ID:         "run-1",
		Status:     domain.RunStatusFailed,
		Error:      &msg,
		StartedAt:  started,
		FinishedAt: &finished,
		Tasks: []*domain.TaskRun{
			{Task: "gather_imdb_titles", Status: domain.TaskStatusSkipped, Reason: domain.SkipReasonCached},
			{Task: "load_database", Status: domain.TaskStatusFailed, Error: &taskErr, StartedAt: &started, FinishedAt: &finished},
		},
	})

	if resp.Status != "failed" || resp.Error != msg || resp.Duration != 90 {
		t.Errorf("unexpected run response %+v", resp)
	}
	if resp.StartedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected timestamp %q", resp.StartedAt)
	}
	if len(resp.Tasks) != 2 || resp.Tasks[0].Reason != "cached" || resp.Tasks[0].StartedAt != "" {
		t.Errorf("unexpected tasks %+v", resp.Tasks)
	}
	if resp.Tasks[1].Error != taskErr || resp.Tasks[1].Duration != 90 {
		t.Errorf("unexpected failed task %+v", resp.Tasks[1])
	}
}
