package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/api/transport"
	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/middleware"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
)

const defaultPageSize = 50

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondPage(ctx *fasthttp.RequestCtx, data interface{}, page transport.Page) {
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(data, page))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", string(ctx.Path())),
			zap.String("request_id", string(ctx.Response.Header.Peek(httpcontext.RequestIDHeader))),
			zap.Error(err))
		message = "internal error"
	}
	h.respondJSON(ctx, status, transport.NewError(code, message, nil))
}

func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, nil))
}

// userID reads the id placed by the auth middleware and answers 401 when it
// is absent.
func (h baseHandler) userID(ctx *fasthttp.RequestCtx) (int64, bool) {
	raw := string(ctx.Request.Header.Peek(middleware.UserIDHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil || id <= 0 {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(string(domain.ErrCodeUnauthorized), "missing user id", nil))
		return 0, false
	}
	return id, true
}

// pathID parses a numeric route parameter.
func (h baseHandler) pathID(ctx *fasthttp.RequestCtx, name string) (int64, bool) {
	raw, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondInvalid(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, string(domain.ErrCodeUnauthorized)
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, string(domain.ErrCodeForbidden)
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}

func queryInt(ctx *fasthttp.RequestCtx, key string, fallback int) int {
	if v, err := strconv.Atoi(string(ctx.QueryArgs().Peek(key))); err == nil && v >= 0 {
		return v
	}
	return fallback
}

func queryInt64(ctx *fasthttp.RequestCtx, key string) (int64, error) {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return 0, nil
	}
	return strconv.ParseInt(string(raw), 10, 64)
}
