package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/api/transport"
	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	"github.com/fastygo/taskpulse/repository"
	taskUC "github.com/fastygo/taskpulse/usecase/task"
)

type TaskHandler struct {
	baseHandler
	uc *taskUC.UseCase
}

func NewTaskHandler(uc *taskUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List tasks
// @Tags tasks
// @Param status query string false "status filter"
// @Param assignee query int false "assignee filter"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	assignee, err := queryInt64(ctx, "assignee")
	if err != nil {
		h.respondInvalid(ctx, "assignee must be a user id")
		return
	}
	filter := repository.TaskFilter{
		AssigneeID: assignee,
		Status:     domain.Status(ctx.QueryArgs().Peek("status")),
		Limit:      queryInt(ctx, "limit", defaultPageSize),
		Offset:     queryInt(ctx, "offset", 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, userID, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondPage(ctx, tasks, transport.Page{Limit: filter.Limit, Offset: filter.Offset, Count: len(tasks)})
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}
	id, ok := h.pathID(ctx, "id")
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Accept json
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	var req transport.TaskCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	in := taskUC.CreateInput{
		AssigneeID:  req.AssigneeID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.Status(req.Status),
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		in.Priority = &priority
	}
	if req.DueAt != nil && *req.DueAt != "" {
		due, err := parseDue(*req.DueAt)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		in.DueAt = &due
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTask(stdCtx, userID, in)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update task
// @Tags tasks
// @Accept json
// @Router /api/v1/tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}
	id, ok := h.pathID(ctx, "id")
	if !ok {
		return
	}

	var req transport.TaskPatchRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}
	patch, err := toPatch(req)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateTask(stdCtx, userID, id, patch)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}
	id, ok := h.pathID(ctx, "id")
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, userID, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

// @Summary Task history
// @Tags tasks
// @Router /api/v1/tasks/{id}/events [get]
func (h *TaskHandler) GetEvents(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}
	id, ok := h.pathID(ctx, "id")
	if !ok {
		return
	}
	limit := queryInt(ctx, "limit", defaultPageSize)
	offset := queryInt(ctx, "offset", 0)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.uc.ListEvents(stdCtx, userID, id, limit, offset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondPage(ctx, events, transport.Page{Limit: limit, Offset: offset, Count: len(events)})
}

func toPatch(req transport.TaskPatchRequest) (taskUC.Patch, error) {
	patch := taskUC.Patch{
		AssigneeID:  req.AssigneeID,
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return patch, err
		}
		patch.Priority = &priority
	}
	if len(req.DueAt) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.DueAt), []byte("null")) {
			patch.ClearDueAt = true
			return patch, nil
		}
		var raw string
		if err := json.Unmarshal(req.DueAt, &raw); err != nil {
			return patch, errDueFormat
		}
		due, err := parseDue(raw)
		if err != nil {
			return patch, err
		}
		patch.DueAt = &due
	}
	return patch, nil
}

var errDueFormat = domain.Invalid("due_at must be an RFC3339 timestamp")

func parseDue(raw string) (time.Time, error) {
	due, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.WrapError(domain.ErrCodeInvalid, errDueFormat.Message, err)
	}
	return due, nil
}
