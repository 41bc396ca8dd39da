package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/yungbote/promptlab-backend/internal/data/aggregates"
	types "github.com/yungbote/promptlab-backend/internal/domain"
	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
	"github.com/yungbote/promptlab-backend/internal/http/response"
	"github.com/yungbote/promptlab-backend/internal/platform/apierr"
	"github.com/yungbote/promptlab-backend/internal/platform/logger"
	"github.com/yungbote/promptlab-backend/internal/services"
)

// WriteRetry bounds how often a write that lost a race is re-run.
// Attempts == 0 disables retrying.
type WriteRetry struct {
	Attempts uint64
	Interval time.Duration
}

type PromptVersionHandler struct {
	log   *logger.Logger
	svc   services.PromptVersionService
	retry WriteRetry
}

func NewPromptVersionHandler(log *logger.Logger, svc services.PromptVersionService, wr WriteRetry) *PromptVersionHandler {
	if wr.Interval <= 0 {
		wr.Interval = 25 * time.Millisecond
	}
	return &PromptVersionHandler{
		log:   log.With("handler", "PromptVersionHandler"),
		svc:   svc,
		retry: wr,
	}
}

// POST /api/prompts
func (h *PromptVersionHandler) CreatePrompt(c *gin.Context) {
	var body versionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAggregateError(c, apierr.BadRequest("invalid request body: %v", err))
		return
	}
	var v *types.PromptVersion
	err := h.withRetry(c.Request.Context(), "PromptVersionHandler.CreatePrompt", func(ctx context.Context) (err error) {
		v, err = h.svc.Create(ctx, services.CreatePromptInput{
			Content:       body.Content,
			CreatedBy:     body.CreatedBy,
			ChangeSummary: body.ChangeSummary,
		})
		return err
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"version": newVersionView(v)})
}

// GET /api/prompts
func (h *PromptVersionHandler) ListPrompts(c *gin.Context) {
	rows, err := h.svc.ListPrompts(c.Request.Context())
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, newPromptListView(rows))
}

// GET /api/prompts/:id
func (h *PromptVersionHandler) GetPrompt(c *gin.Context) {
	promptID, ok := promptIDParam(c)
	if !ok {
		return
	}
	p, err := h.svc.GetPrompt(c.Request.Context(), promptID)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"prompt": newPromptView(p)})
}

// DELETE /api/prompts/:id
func (h *PromptVersionHandler) DeletePrompt(c *gin.Context) {
	promptID, ok := promptIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), promptID); err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondNoContent(c)
}

// PUT /api/prompts/:id
func (h *PromptVersionHandler) UpdatePrompt(c *gin.Context) {
	promptID, ok := promptIDParam(c)
	if !ok {
		return
	}
	var body versionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondAggregateError(c, apierr.BadRequest("invalid request body: %v", err))
		return
	}
	var v *types.PromptVersion
	err := h.withRetry(c.Request.Context(), "PromptVersionHandler.UpdatePrompt", func(ctx context.Context) (err error) {
		v, err = h.svc.Update(ctx, promptID, services.UpdatePromptInput{
			Content:       body.Content,
			CreatedBy:     body.CreatedBy,
			ChangeSummary: body.ChangeSummary,
		})
		return err
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": newVersionView(v)})
}

// GET /api/prompts/:id/versions/current
func (h *PromptVersionHandler) GetCurrentVersion(c *gin.Context) {
	promptID, ok := promptIDParam(c)
	if !ok {
		return
	}
	v, err := h.svc.GetCurrent(c.Request.Context(), promptID)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": newVersionView(v)})
}

// GET /api/prompts/:id/versions
func (h *PromptVersionHandler) ListVersions(c *gin.Context) {
	promptID, ok := promptIDParam(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListVersions(c.Request.Context(), promptID)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, newVersionListView(promptID, rows))
}

// GET /api/prompts/:id/versions/:number
func (h *PromptVersionHandler) GetVersion(c *gin.Context) {
	promptID, ok := promptIDParam(c)
	if !ok {
		return
	}
	n, ok := versionNumberParam(c)
	if !ok {
		return
	}
	v, err := h.svc.GetVersion(c.Request.Context(), promptID, n)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": newVersionView(v)})
}

// POST /api/prompts/:id/versions/:number/rollback
func (h *PromptVersionHandler) RollbackVersion(c *gin.Context) {
	promptID, ok := promptIDParam(c)
	if !ok {
		return
	}
	n, ok := versionNumberParam(c)
	if !ok {
		return
	}
	var body rollbackBody
	// An empty body, chunked or not, means defaults.
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.RespondAggregateError(c, apierr.BadRequest("invalid request body: %v", err))
		return
	}
	var v *types.PromptVersion
	err := h.withRetry(c.Request.Context(), "PromptVersionHandler.RollbackVersion", func(ctx context.Context) (err error) {
		v, err = h.svc.Rollback(ctx, promptID, n, services.RollbackInput{
			CreatedBy:     body.CreatedBy,
			ChangeSummary: body.ChangeSummary,
		})
		return err
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": newVersionView(v)})
}

// withRetry re-runs fn while it fails with a conflict or transient error.
// The final error is returned once attempts are exhausted; a bare context
// error from an abandoned request is mapped to retryable.
func (h *PromptVersionHandler) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if h.retry.Attempts == 0 {
		return aggregates.MapError(op, fn(ctx))
	}
	attempt := 0
	backoff := retry.WithMaxRetries(h.retry.Attempts, retry.NewConstant(h.retry.Interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && domainagg.CallerMayRetry(err) {
			h.log.Debug("write lost race; retrying", "attempt", attempt, "code", domainagg.CodeOf(err))
			return retry.RetryableError(err)
		}
		return err
	})
	return aggregates.MapError(op, err)
}

func promptIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil || id == uuid.Nil {
		response.RespondAggregateError(c, apierr.BadRequest("invalid prompt id %q", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

func versionNumberParam(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Param("number"))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		response.RespondAggregateError(c, apierr.BadRequest("invalid version number %q", raw))
		return 0, false
	}
	return n, true
}
