package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/api/transport"
	"github.com/fastygo/taskpulse/domain"
	tg "github.com/fastygo/taskpulse/internal/infrastructure/telegram"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	telegramUC "github.com/fastygo/taskpulse/usecase/telegram"
)

type TelegramHandler struct {
	baseHandler
	uc *telegramUC.UseCase
}

func NewTelegramHandler(uc *telegramUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TelegramHandler {
	return &TelegramHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Issue a Telegram link token
// @Tags telegram
// @Router /api/v1/integrations/telegram/link [post]
func (h *TelegramHandler) Link(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.IssueLinkToken(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, transport.LinkTokenResponse{
		Token:     token.Token,
		DeepLink:  token.DeepLink,
		ExpiresAt: token.ExpiresAt,
	})
}

// @Summary Telegram webhook
// @Tags telegram
// @Router /api/v1/integrations/telegram/webhook/{secret} [post]
func (h *TelegramHandler) Webhook(ctx *fasthttp.RequestCtx) {
	secret, _ := ctx.UserValue("secret").(string)
	if !h.uc.VerifySecret(secret) {
		h.respondError(ctx, domain.Forbidden("invalid webhook secret"))
		return
	}

	var update tg.Update
	if err := json.Unmarshal(ctx.PostBody(), &update); err != nil {
		// Non-2xx answers make Telegram redeliver the same body.
		h.logger.Warn("telegram webhook: malformed update", zap.Error(err))
		h.respondSuccess(ctx, http.StatusOK, map[string]string{"outcome": string(telegramUC.OutcomeIgnored)})
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	outcome, err := h.uc.HandleUpdate(stdCtx, update)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
