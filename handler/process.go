package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrF3lix/archre/config"
	"github.com/MrF3lix/archre/middleware"
	"github.com/MrF3lix/archre/model"
	"github.com/MrF3lix/archre/pkg/logger"
	"github.com/MrF3lix/archre/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProcessHandler exposes the review process trigger surface: create on
// upload, start diff, save triage, start report, save draft, reset.
type ProcessHandler struct {
	config       *config.Config
	store        *service.ProcessStore
	minioService *service.MinioService
	orchestrator *service.Orchestrator
	triage       *service.TriageAggregator
	notifier     *service.StatusNotifier
}

func NewProcessHandler(
	cfg *config.Config,
	store *service.ProcessStore,
	minioSvc *service.MinioService,
	orchestrator *service.Orchestrator,
	triage *service.TriageAggregator,
	notifier *service.StatusNotifier,
) *ProcessHandler {
	return &ProcessHandler{
		config:       cfg,
		store:        store,
		minioService: minioSvc,
		orchestrator: orchestrator,
		triage:       triage,
		notifier:     notifier,
	}
}

var allowedWordingExts = map[string]bool{
	".md":   true,
	".pdf":  true,
	".docx": true,
}

// Create handles the wording pair upload and registers a new process in
// UPLOADED. The pair is ordered: wording_old is last year's contract,
// wording_new the renewal wording under review.
func (h *ProcessHandler) Create(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	clientRef := c.PostForm("client")
	client := h.config.FindClient(clientRef)
	if client == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown client"})
		return
	}

	oldFile, oldHeader, err := c.Request.FormFile("wording_old")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No wording_old file provided"})
		return
	}
	defer oldFile.Close()

	newFile, newHeader, err := c.Request.FormFile("wording_new")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No wording_new file provided"})
		return
	}
	defer newFile.Close()

	for _, header := range []*multipart.FileHeader{oldHeader, newHeader} {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedWordingExts[ext] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only Markdown, PDF and DOCX wordings are allowed"})
			return
		}
	}

	processID := uuid.New().String()

	oldRef, err := h.minioService.UploadWording(c.Request.Context(), tenant, processID, oldHeader.Filename, oldFile, oldHeader.Size, contentTypeFor(oldHeader))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store wording: " + err.Error()})
		return
	}

	newRef, err := h.minioService.UploadWording(c.Request.Context(), tenant, processID, newHeader.Filename, newFile, newHeader.Size, contentTypeFor(newHeader))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store wording: " + err.Error()})
		return
	}

	process := &model.Process{
		ID:            processID,
		ClientRef:     client.ID,
		ClientCountry: client.Country,
		Tenant:        tenant,
		Documents:     model.DocumentPair{Old: oldRef, New: newRef},
		Status:        model.StatusUploaded,
		CreatedAt:     time.Now(),
	}
	h.store.Create(process)

	logger.Info(c.Request.Context(), "process created",
		"process_id", processID,
		"client", client.ID,
		"wording_old", oldRef,
		"wording_new", newRef,
	)

	c.JSON(http.StatusCreated, gin.H{
		"id":        processID,
		"client":    client.ID,
		"status":    model.StatusUploaded,
		"documents": process.Documents,
	})
}

func contentTypeFor(header *multipart.FileHeader) string {
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/markdown"
	}
}

// StartDiff triggers the diff stage. Safe to call repeatedly: a second
// trigger while the stage is running or finished answers 409 and
// dispatches nothing.
func (h *ProcessHandler) StartDiff(c *gin.Context) {
	id := c.Param("id")
	if !h.ownedByTenant(c, id) {
		return
	}

	if err := h.orchestrator.StartDiffStage(id); err != nil {
		h.writeStageError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     id,
		"status": model.StatusProcessingDiff,
	})
}

type triageRequest struct {
	Decisions []service.TriageDecision `json:"decisions" binding:"required"`
}

// SaveTriage replaces the triage snapshot for a process in DIFF_READY.
func (h *ProcessHandler) SaveTriage(c *gin.Context) {
	id := c.Param("id")
	if !h.ownedByTenant(c, id) {
		return
	}

	var req triageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.triage.SaveTriage(id, req.Decisions); err != nil {
		if service.AsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.writeStageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "message": "Triage saved"})
}

// StartReport triggers report generation from the saved triage.
func (h *ProcessHandler) StartReport(c *gin.Context) {
	id := c.Param("id")
	if !h.ownedByTenant(c, id) {
		return
	}

	if err := h.orchestrator.StartReportStage(id); err != nil {
		h.writeStageError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     id,
		"status": model.StatusProcessingReport,
	})
}

type draftRequest struct {
	Draft string `json:"draft"`
}

// SaveDraft stores the user-edited report text.
func (h *ProcessHandler) SaveDraft(c *gin.Context) {
	id := c.Param("id")
	if !h.ownedByTenant(c, id) {
		return
	}

	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.store.SetReportDraft(id, req.Draft); err != nil {
		h.writeStageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "message": "Draft saved"})
}

// Reset is the operator action moving an ERROR process back to its last
// stable stage.
func (h *ProcessHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	if !h.ownedByTenant(c, id) {
		return
	}

	status, err := h.orchestrator.ResetToPreviousStage(id)
	if err != nil {
		h.writeStageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

// List returns all processes for the current tenant
func (h *ProcessHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	processes := h.store.GetByTenant(tenant)

	// Return without artifacts for list view
	result := make([]gin.H, len(processes))
	for i, p := range processes {
		result[i] = gin.H{
			"id":         p.ID,
			"client":     p.ClientRef,
			"status":     p.Status,
			"documents":  p.Documents,
			"created_at": p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"updated_at": p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, gin.H{"processes": result})
}

// Get returns a single process with its artifacts
func (h *ProcessHandler) Get(c *gin.Context) {
	id := c.Param("id")
	p := h.processForTenant(c, id)
	if p == nil {
		return
	}

	c.JSON(http.StatusOK, p)
}

// GetStatus returns the current stage of a process
func (h *ProcessHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	p := h.processForTenant(c, id)
	if p == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         p.ID,
		"status":     p.Status,
		"error_kind": p.ErrorKind,
		"error_msg":  p.ErrorMsg,
	})
}

// Delete removes a process and its stored wordings.
func (h *ProcessHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	p := h.processForTenant(c, id)
	if p == nil {
		return
	}

	for _, objectName := range []string{p.Documents.Old, p.Documents.New} {
		if objectName == "" {
			continue
		}
		if err := h.minioService.DeleteObject(c.Request.Context(), objectName); err != nil {
			logger.Warn(c.Request.Context(), "failed to delete wording object",
				"process_id", id,
				"object", objectName,
				"error", err,
			)
		}
	}

	h.store.Delete(id)
	logger.Info(c.Request.Context(), "process deleted", "process_id", id)

	c.JSON(http.StatusOK, gin.H{"id": id, "message": "Process deleted"})
}

// GetDocumentURL returns a short-lived download link for one wording of
// the pair.
func (h *ProcessHandler) GetDocumentURL(c *gin.Context) {
	id := c.Param("id")
	p := h.processForTenant(c, id)
	if p == nil {
		return
	}

	var objectName string
	switch c.Param("which") {
	case "old":
		objectName = p.Documents.Old
	case "new":
		objectName = p.Documents.New
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown document, use old or new"})
		return
	}

	url, err := h.minioService.GetPresignedURL(c.Request.Context(), objectName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create download link"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// processForTenant resolves the process and enforces tenant ownership,
// writing the 404 itself when either check fails.
func (h *ProcessHandler) processForTenant(c *gin.Context, id string) *model.Process {
	tenant := middleware.GetTenant(c)

	p := h.store.Get(id)
	if p == nil || p.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Process not found"})
		return nil
	}
	return p
}

func (h *ProcessHandler) ownedByTenant(c *gin.Context, id string) bool {
	return h.processForTenant(c, id) != nil
}

// writeStageError maps service errors to HTTP codes. Stage conflicts are
// 409 so the UI can treat "already in progress" as a no-op.
func (h *ProcessHandler) writeStageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProcessNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Process not found"})
	case errors.Is(err, service.ErrAlreadyInProgress),
		errors.Is(err, service.ErrTriageMissing),
		errors.Is(err, service.ErrNotResettable),
		errors.Is(err, service.ErrDraftNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
