package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/phrazzld/longform/internal/api/shared"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/platform/logger"
	"github.com/phrazzld/longform/internal/service"
)

// CreateRunRequest represents the request body for starting a generation run
type CreateRunRequest struct {
	Topic        string `json:"topic" validate:"required,max=500"`
	Audience     string `json:"audience" validate:"required,max=500"`
	Style        string `json:"style" validate:"omitempty,max=50"`
	MainHeadings int    `json:"main_headings" validate:"gte=1,lte=50"`
	SubHeadings  int    `json:"sub_headings" validate:"gte=1,lte=5"`
	// APIKey optionally overrides the server's OpenAI key for this run
	APIKey string `json:"api_key,omitempty"`
}

// RunLinks points at the downloadable artifacts of a run.
type RunLinks struct {
	Self     string `json:"self"`
	Document string `json:"document,omitempty"`
	HTML     string `json:"html,omitempty"`
	Archive  string `json:"archive,omitempty"`
}

// RunResponse represents the response data for a run
type RunResponse struct {
	ID           string           `json:"id"`
	Status       string           `json:"status"`
	Topic        string           `json:"topic"`
	Audience     string           `json:"audience"`
	Style        string           `json:"style"`
	MainHeadings int              `json:"main_headings"`
	SubHeadings  int              `json:"sub_headings"`
	SessionID    string           `json:"session_id,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Progress     *events.Snapshot `json:"progress,omitempty"`
	Links        RunLinks         `json:"links"`
}

// RunHandler handles run-related HTTP requests
type RunHandler struct {
	runService service.RunService
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(runService service.RunService) *RunHandler {
	return &RunHandler{runService: runService}
}

// CreateRun handles POST /api/runs requests
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	run, err := h.runService.CreateRunAndEnqueueTask(r.Context(), service.CreateRunParams{
		Topic:     req.Topic,
		Audience:  req.Audience,
		Style:     req.Style,
		MainCount: req.MainHeadings,
		SubCount:  req.SubHeadings,
		APIKey:    req.APIKey,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create run")
		return
	}

	logger.FromContext(r.Context()).InfoContext(r.Context(), "run accepted",
		"run_id", run.ID,
		"client", shared.GetClient(r.Context()))

	// Generation happens asynchronously
	w.Header().Set("Location", runPath(run.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, toRunResponse(&service.RunView{Run: run}))
}

// GetRun handles GET /api/runs/{id} requests
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.runService.GetRun(r.Context(), runID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get run")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toRunResponse(view))
}

// GetDocument handles GET /api/runs/{id}/document requests. The illustrated
// markdown is returned unless format=html asks for the rendered page.
func (h *RunHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	artifact, contentType := service.ArtifactDocument, "text/markdown; charset=utf-8"
	switch r.URL.Query().Get("format") {
	case "", "markdown", "md":
	case "html":
		artifact, contentType = service.ArtifactHTML, "text/html; charset=utf-8"
	default:
		shared.RespondWithError(w, r, http.StatusBadRequest, "format must be markdown or html")
		return
	}
	h.serveArtifact(w, r, artifact, contentType, false)
}

// GetArchive handles GET /api/runs/{id}/archive requests
func (h *RunHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, service.ArtifactArchive, "application/zip", true)
}

func (h *RunHandler) serveArtifact(w http.ResponseWriter, r *http.Request, artifact, contentType string, attachment bool) {
	runID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	path, err := h.runService.ArtifactPath(r.Context(), runID, artifact)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get artifact")
		return
	}

	w.Header().Set("Content-Type", contentType)
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	}
	http.ServeFile(w, r, path)
}

func runPath(id string) string {
	return "/api/runs/" + id
}

func toRunResponse(view *service.RunView) RunResponse {
	run := view.Run
	self := runPath(run.ID.String())
	resp := RunResponse{
		ID:           run.ID.String(),
		Status:       string(run.Status),
		Topic:        run.Brief.Topic,
		Audience:     run.Brief.Audience,
		Style:        string(run.Brief.Style),
		MainHeadings: run.MainCount,
		SubHeadings:  run.SubCount,
		SessionID:    run.SessionID,
		Error:        run.Error,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
		Links:        RunLinks{Self: self},
	}
	if view.Progress.Stage != "" || view.Progress.Progress > 0 {
		progress := view.Progress
		resp.Progress = &progress
	}
	if view.Artifacts.DocumentPath != "" {
		resp.Links.Document = self + "/document"
	}
	if view.Artifacts.HTMLPath != "" {
		resp.Links.HTML = self + "/document?format=html"
	}
	if view.Artifacts.ArchivePath != "" {
		resp.Links.Archive = self + "/archive"
	}
	return resp
}
