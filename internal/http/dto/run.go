package dto

import (
	"time"

	"github.com/cesargomez89/flixetl/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

type TaskResponse struct {
	Task       string  `json:"task"`
	Status     string  `json:"status"`
	Reason     string  `json:"reason,omitempty"`
	Error      string  `json:"error,omitempty"`
	StartedAt  string  `json:"started_at,omitempty"`
	FinishedAt string  `json:"finished_at,omitempty"`
	Duration   float64 `json:"duration_seconds"`
}

type RunResponse struct {
	ID         string         `json:"id"`
	Force      bool           `json:"force"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Duration   float64        `json:"duration_seconds"`
	Tasks      []TaskResponse `json:"tasks,omitempty"`
}

func NewTaskResponse(t *domain.TaskRun) TaskResponse {
	resp := TaskResponse{
		Task:   t.Task,
		Status: string(t.Status),
		Reason: t.Reason,
	}
	if t.Error != nil {
		resp.Error = *t.Error
	}
	if t.StartedAt != nil {
		resp.StartedAt = t.StartedAt.Format(timeFormat)
	}
	if t.FinishedAt != nil {
		resp.FinishedAt = t.FinishedAt.Format(timeFormat)
	}
	if t.StartedAt != nil && t.FinishedAt != nil {
		resp.Duration = t.FinishedAt.Sub(*t.StartedAt).Seconds()
	}
	return resp
}

func NewRunResponse(r *domain.PipelineRun) RunResponse {
	resp := RunResponse{
		ID:        r.ID,
		Force:     r.Force,
		Status:    string(r.Status),
		StartedAt: r.StartedAt.Format(timeFormat),
	}
	if r.Error != nil {
		resp.Error = *r.Error
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.Format(timeFormat)
		resp.Duration = r.FinishedAt.Sub(r.StartedAt).Seconds()
	} else {
		resp.Duration = time.Since(r.StartedAt).Seconds()
	}
	for _, t := range r.Tasks {
		resp.Tasks = append(resp.Tasks, NewTaskResponse(t))
	}
	return resp
}

// StatusResponse is the orchestrator's current view of every task.
type StatusResponse struct {
	Running bool              `json:"running"`
	Tasks   map[string]string `json:"tasks"`
	LastRun *RunResponse      `json:"last_run,omitempty"`
}

func NewStatusResponse(running bool, tasks map[string]domain.TaskStatus, last *domain.PipelineRun) StatusResponse {
	resp := StatusResponse{
		Running: running,
		Tasks:   make(map[string]string, len(tasks)),
	}
	for name, status := range tasks {
		resp.Tasks[name] = string(status)
	}
	if last != nil {
		lr := NewRunResponse(last)
		resp.LastRun = &lr
	}
	return resp
}

type RebuildAccepted struct {
	RunID  string `json:"run_id"`
	Force  bool   `json:"force"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
