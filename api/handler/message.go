package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/api/transport"
	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	"github.com/fastygo/taskpulse/repository"
	messageUC "github.com/fastygo/taskpulse/usecase/message"
)

type MessageHandler struct {
	baseHandler
	uc *messageUC.UseCase
}

func NewMessageHandler(uc *messageUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List conversation messages of a task
// @Tags messages
// @Param task_id query int true "task id"
// @Param user_id query int false "peer id"
// @Router /api/v1/tasks/conversation-messages [get]
func (h *MessageHandler) List(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	taskID, err := queryInt64(ctx, "task_id")
	if err != nil {
		h.respondInvalid(ctx, "task_id must be a number")
		return
	}
	peerID, err := queryInt64(ctx, "user_id")
	if err != nil {
		h.respondInvalid(ctx, "user_id must be a number")
		return
	}
	filter := repository.MessageFilter{
		TaskID: taskID,
		UserID: peerID,
		Limit:  queryInt(ctx, "limit", defaultPageSize),
		Offset: queryInt(ctx, "offset", 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	messages, err := h.uc.List(stdCtx, userID, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondPage(ctx, messages, transport.Page{Limit: filter.Limit, Offset: filter.Offset, Count: len(messages)})
}

// @Summary Post a conversation message
// @Tags messages
// @Accept json
// @Router /api/v1/tasks/conversation-messages [post]
func (h *MessageHandler) Create(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	var req transport.MessageCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	msg, err := h.uc.Post(stdCtx, userID, messageUC.PostInput{
		TaskID: req.TaskID,
		PeerID: req.UserID,
		Text:   req.Text,
		Source: domain.SourceApp,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, msg)
}
