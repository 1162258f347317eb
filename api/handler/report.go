package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	"github.com/fastygo/taskpulse/usecase/report"
	userUC "github.com/fastygo/taskpulse/usecase/user"
)

var (
	errReportCreatorOnly = domain.Forbidden("monthly report is available only to users with role CREATOR")
	errReportSubject     = domain.Invalid("user must be \"me\" or a user id")
	errReportFormat      = domain.Invalid("format must be json or csv")
)

type ReportHandler struct {
	baseHandler
	reports *report.Service
	users   *userUC.UseCase
}

func NewReportHandler(reports *report.Service, users *userUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		baseHandler: newBaseHandler(adapter, logger),
		reports:     reports,
		users:       users,
	}
}

// @Summary Monthly KPI of an assignee
// @Tags reports
// @Param month query string true "YYYY-MM"
// @Param user query string false "me or a user id"
// @Param format query string false "json or csv"
// @Router /api/v1/tasks/reports/monthly [get]
func (h *ReportHandler) Monthly(ctx *fasthttp.RequestCtx) {
	userID, ok := h.userID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	actor, err := h.users.GetUser(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if !actor.IsCreator() {
		h.respondError(ctx, errReportCreatorOnly)
		return
	}

	args := ctx.QueryArgs()
	year, month, err := report.ParseMonth(string(args.Peek("month")))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	subject := actor.ID
	if raw := strings.TrimSpace(string(args.Peek("user"))); raw != "" && raw != "me" {
		subject, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || subject <= 0 {
			h.respondError(ctx, errReportSubject)
			return
		}
	}

	format := strings.ToLower(string(args.Peek("format")))
	if format != "" && format != "json" && format != "csv" {
		h.respondError(ctx, errReportFormat)
		return
	}

	if subject != actor.ID {
		if _, err := h.users.Lookup(stdCtx, subject); err != nil {
			h.respondError(ctx, err)
			return
		}
	}

	result, err := h.reports.Compute(stdCtx, subject, year, month)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	if format != "csv" {
		h.respondSuccess(ctx, http.StatusOK, result)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, result); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Response.Header.SetContentType("text/csv; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"kpi-%d-%s.csv\"", result.UserID, result.Month))
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(buf.Bytes())
}
