package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskpulse/api/handler"
	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/infrastructure/monitor"
	"github.com/fastygo/taskpulse/internal/middleware"
	"github.com/fastygo/taskpulse/internal/router"
	"github.com/fastygo/taskpulse/internal/testutil"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	redisRepo "github.com/fastygo/taskpulse/repository/redis"
	messageUC "github.com/fastygo/taskpulse/usecase/message"
	"github.com/fastygo/taskpulse/usecase/report"
	taskUC "github.com/fastygo/taskpulse/usecase/task"
	telegramUC "github.com/fastygo/taskpulse/usecase/telegram"
	userUC "github.com/fastygo/taskpulse/usecase/user"
)

const (
	jwtSecret     = "handler-secret"
	jwtIssuer     = "taskpulse"
	webhookSecret = "hook-secret"

	creatorID  int64 = 1
	executorID int64 = 2
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  json.RawMessage `json:"error"`
}

type stubStatus struct{ status monitor.Status }

func (s stubStatus) GetStatus() monitor.Status { return s.status }

type fixture struct {
	t        *testing.T
	store    *testutil.Store
	notifier *testutil.Notifier
	health   *stubStatus
	handler  fasthttp.RequestHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := testutil.NewStore()
	store.AddUser(creatorID, domain.RoleCreator)
	store.AddUser(executorID, domain.RoleExecutor)
	notifier := &testutil.Notifier{}
	health := &stubStatus{}

	users := userUC.New(store.Users(), store.TelegramProfiles(), nil)
	tasks := taskUC.New(store.Tasks(), store.Users(), store.Events(), &testutil.Buffer{}, notifier, nil)
	messages := messageUC.New(store.Tasks(), store.Messages(), notifier, nil)
	telegram := telegramUC.New(
		store.TelegramProfiles(),
		redisRepo.NewLinkTokenRepository(client, time.Minute),
		redisRepo.NewUpdateDeduplicator(client),
		store.Tasks(),
		messages,
		notifier,
		telegramUC.Config{BotUsername: "taskpulse_bot", WebhookSecret: webhookSecret},
		nil,
	)

	adapter := httpcontext.NewAdapter(time.Second)
	r := router.New(router.Handlers{
		Profile:  apiHandler.NewProfileHandler(users, adapter, nil),
		Task:     apiHandler.NewTaskHandler(tasks, adapter, nil),
		Report:   apiHandler.NewReportHandler(report.New(store.Tasks(), time.UTC, nil), users, adapter, nil),
		Message:  apiHandler.NewMessageHandler(messages, adapter, nil),
		Telegram: apiHandler.NewTelegramHandler(telegram, adapter, nil),
		Health:   apiHandler.NewHealthHandler(health, adapter, nil),
	}, middleware.JWTAuth(jwtSecret, jwtIssuer, nil))

	return &fixture{t: t, store: store, notifier: notifier, health: health, handler: r.Handler}
}

func (f *fixture) token(userID int64) string {
	f.t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iss":     jwtIssuer,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		f.t.Fatalf("sign: %v", err)
	}
	return token
}

func (f *fixture) do(method, uri string, userID int64, body string) *fasthttp.RequestCtx {
	f.t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	if userID > 0 {
		req.Header.Set("Authorization", "Bearer "+f.token(userID))
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	f.handler(&ctx)
	return &ctx
}

func decode(t *testing.T, ctx *fasthttp.RequestCtx, want int) envelope {
	t.Helper()
	if got := ctx.Response.StatusCode(); got != want {
		t.Fatalf("status %d, want %d: %s", got, want, ctx.Response.Body())
	}
	var env envelope
	if len(ctx.Response.Body()) == 0 {
		return env
	}
	if err := json.Unmarshal(ctx.Response.Body(), &env); err != nil {
		t.Fatalf("decode envelope: %v: %s", err, ctx.Response.Body())
	}
	return env
}

func (f *fixture) createTask(body string) domain.Task {
	f.t.Helper()
	env := decode(f.t, f.do(http.MethodPost, "/api/v1/tasks", creatorID, body), http.StatusCreated)
	var task domain.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		f.t.Fatalf("decode task: %v", err)
	}
	return task
}

func TestRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	decode(t, f.do(http.MethodGet, "/api/v1/tasks", 0, ""), http.StatusUnauthorized)
	decode(t, f.do(http.MethodGet, "/api/v1/tasks/reports/monthly?month=2026-01", 0, ""), http.StatusUnauthorized)
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(`{"assignee":2,"title":"Quarterly report","priority":"high","due_at":"2026-01-20T18:00:00Z"}`)
	if task.ID == 0 || task.Status != domain.StatusNew || task.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.DueAt == nil || !task.DueAt.Equal(time.Date(2026, 1, 20, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due_at %v", task.DueAt)
	}
	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)

	decode(t, f.do(http.MethodGet, path, executorID, ""), http.StatusOK)

	var list []domain.Task
	env := decode(t, f.do(http.MethodGet, "/api/v1/tasks?status=new", executorID, ""), http.StatusOK)
	if err := json.Unmarshal(env.Data, &list); err != nil || len(list) != 1 {
		t.Fatalf("expected one listed task, got %s (%v)", env.Data, err)
	}

	decode(t, f.do(http.MethodPatch, path, executorID, `{"title":"renamed"}`), http.StatusForbidden)

	env = decode(t, f.do(http.MethodPatch, path, executorID, `{"status":"done"}`), http.StatusOK)
	var updated domain.Task
	if err := json.Unmarshal(env.Data, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != domain.StatusDone {
		t.Fatalf("expected done, got %s", updated.Status)
	}

	var events []domain.TaskEvent
	env = decode(t, f.do(http.MethodGet, path+"/events", creatorID, ""), http.StatusOK)
	if err := json.Unmarshal(env.Data, &events); err != nil || len(events) != 2 {
		t.Fatalf("expected two events, got %s (%v)", env.Data, err)
	}

	decode(t, f.do(http.MethodDelete, path, executorID, ""), http.StatusForbidden)
	decode(t, f.do(http.MethodDelete, path, creatorID, ""), http.StatusNoContent)
	decode(t, f.do(http.MethodGet, path, creatorID, ""), http.StatusNotFound)
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"malformed json":   `{"title":`,
		"unknown priority": `{"assignee":2,"title":"x","priority":"urgent"}`,
		"bad due_at":       `{"assignee":2,"title":"x","due_at":"tomorrow"}`,
		"missing title":    `{"assignee":2,"title":"  "}`,
		"unknown assignee": `{"assignee":77,"title":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := decode(t, f.do(http.MethodPost, "/api/v1/tasks", creatorID, body), http.StatusBadRequest)
			if env.Code != string(domain.ErrCodeInvalid) {
				t.Fatalf("unexpected code %q", env.Code)
			}
		})
	}
	decode(t, f.do(http.MethodGet, "/api/v1/tasks/abc", creatorID, ""), http.StatusBadRequest)
}

func TestPatchNullClearsDueAt(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(`{"assignee":2,"title":"With deadline","due_at":"2026-02-01T10:00:00+03:00"}`)
	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)

	env := decode(t, f.do(http.MethodPatch, path, creatorID, `{"priority":"low"}`), http.StatusOK)
	var kept domain.Task
	_ = json.Unmarshal(env.Data, &kept)
	if kept.DueAt == nil || kept.Priority != domain.PriorityLow {
		t.Fatalf("absent due_at must be kept, got %+v", kept)
	}

	env = decode(t, f.do(http.MethodPatch, path, creatorID, `{"due_at":null}`), http.StatusOK)
	var cleared domain.Task
	_ = json.Unmarshal(env.Data, &cleared)
	if cleared.DueAt != nil {
		t.Fatalf("expected due_at cleared, got %v", cleared.DueAt)
	}
}

func seedReport(f *fixture) {
	due := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	f.store.PutTask(domain.Task{ID: 100, CreatorID: creatorID, AssigneeID: executorID, Title: "on time",
		Status: domain.StatusDone, Priority: domain.PriorityHigh, DueAt: &due, UpdatedAt: due.Add(-time.Hour)})
	f.store.PutTask(domain.Task{ID: 101, CreatorID: creatorID, AssigneeID: executorID, Title: "late",
		Status: domain.StatusDone, Priority: domain.PriorityLow, DueAt: &due, UpdatedAt: due.Add(time.Hour)})
	f.store.PutTask(domain.Task{ID: 102, CreatorID: creatorID, AssigneeID: executorID, Title: "open",
		Status: domain.StatusInProgress, Priority: domain.PriorityMedium, DueAt: &due, UpdatedAt: due})
}

func TestMonthlyReportJSON(t *testing.T) {
	f := newFixture(t)
	seedReport(f)

	env := decode(t, f.do(http.MethodGet, "/api/v1/tasks/reports/monthly?month=2026-01&user=2", creatorID, ""), http.StatusOK)
	var result domain.KpiResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.UserID != executorID || result.Month != "2026-01" {
		t.Fatalf("unexpected subject %+v", result)
	}
	want := domain.KpiCounters{Total: 3, Done: 2, DoneOnTime: 1, DoneLate: 1}
	if result.KpiCounters != want {
		t.Fatalf("got %+v, want %+v", result.KpiCounters, want)
	}
	if high := result.ByPriority[domain.PriorityHigh]; high.DoneOnTime != 1 || high.Total != 1 {
		t.Fatalf("unexpected high bucket %+v", high)
	}

	env = decode(t, f.do(http.MethodGet, "/api/v1/tasks/reports/monthly?month=2026-01&user=me", creatorID, ""), http.StatusOK)
	_ = json.Unmarshal(env.Data, &result)
	if result.UserID != creatorID || result.Total != 0 {
		t.Fatalf("expected empty report for the creator, got %+v", result)
	}
}

func TestMonthlyReportCSV(t *testing.T) {
	f := newFixture(t)
	seedReport(f)

	ctx := f.do(http.MethodGet, "/api/v1/tasks/reports/monthly?month=2026-01&user=2&format=csv", creatorID, "")
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("status %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	if ct := string(ctx.Response.Header.ContentType()); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := string(ctx.Response.Header.Peek("Content-Disposition")); !strings.Contains(cd, "kpi-2-2026-01.csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	body := string(ctx.Response.Body())
	if !strings.HasPrefix(body, "user_id,month,total,done,done_on_time,done_late\n2,2026-01,3,2,1,1\n") {
		t.Fatalf("unexpected summary section:\n%s", body)
	}
	if !strings.Contains(body, "priority,total,done,done_on_time,done_late\nlow,1,1,0,1\n") {
		t.Fatalf("missing priority section:\n%s", body)
	}
}

func TestMonthlyReportRejections(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		actor int64
		query string
		code  int
	}{
		{"executor", executorID, "month=2026-01", http.StatusForbidden},
		{"missing month", creatorID, "", http.StatusBadRequest},
		{"month out of range", creatorID, "month=2026-13", http.StatusBadRequest},
		{"subject not a number", creatorID, "month=2026-01&user=abc", http.StatusBadRequest},
		{"unknown format", creatorID, "month=2026-01&format=xml", http.StatusBadRequest},
		{"unknown subject", creatorID, "month=2026-01&user=999", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decode(t, f.do(http.MethodGet, "/api/v1/tasks/reports/monthly?"+tc.query, tc.actor, ""), tc.code)
		})
	}
}

func TestConversationMessages(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(`{"assignee":2,"title":"Discuss"}`)

	body := fmt.Sprintf(`{"task_id":%d,"user_id":2,"text":"Any blockers?"}`, task.ID)
	env := decode(t, f.do(http.MethodPost, "/api/v1/tasks/conversation-messages", creatorID, body), http.StatusCreated)
	var msg domain.TaskMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.SenderID != creatorID || msg.PeerID != executorID || msg.Source != domain.SourceApp {
		t.Fatalf("unexpected message %+v", msg)
	}

	uri := fmt.Sprintf("/api/v1/tasks/conversation-messages?task_id=%d&user_id=2", task.ID)
	env = decode(t, f.do(http.MethodGet, uri, executorID, ""), http.StatusOK)
	var thread []domain.TaskMessage
	if err := json.Unmarshal(env.Data, &thread); err != nil || len(thread) != 1 {
		t.Fatalf("expected one message, got %s (%v)", env.Data, err)
	}

	decode(t, f.do(http.MethodGet, "/api/v1/tasks/conversation-messages", executorID, ""), http.StatusBadRequest)
	decode(t, f.do(http.MethodPost, "/api/v1/tasks/conversation-messages", creatorID,
		fmt.Sprintf(`{"task_id":%d,"text":"no peer"}`, task.ID)), http.StatusBadRequest)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	env := decode(t, f.do(http.MethodGet, "/api/v1/profile", executorID, ""), http.StatusOK)
	var profile userUC.Profile
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.User == nil || profile.User.ID != executorID || profile.TelegramLinked {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestTelegramLinkAndWebhook(t *testing.T) {
	f := newFixture(t)

	env := decode(t, f.do(http.MethodPost, "/api/v1/integrations/telegram/link", executorID, ""), http.StatusCreated)
	var link struct {
		Token    string `json:"token"`
		DeepLink string `json:"deep_link"`
	}
	if err := json.Unmarshal(env.Data, &link); err != nil || link.Token == "" {
		t.Fatalf("expected token, got %s (%v)", env.Data, err)
	}
	if !strings.HasPrefix(link.DeepLink, "https://t.me/taskpulse_bot?start=") {
		t.Fatalf("unexpected deep link %q", link.DeepLink)
	}

	decode(t, f.do(http.MethodPost, "/api/v1/integrations/telegram/webhook/wrong", 0, `{}`), http.StatusForbidden)

	env = decode(t, f.do(http.MethodPost, "/api/v1/integrations/telegram/webhook/"+webhookSecret, 0, `not json`), http.StatusOK)
	if !strings.Contains(string(env.Data), "ignored") {
		t.Fatalf("expected ignored outcome, got %s", env.Data)
	}

	update := fmt.Sprintf(`{"update_id":1,"message":{"message_id":5,"from":{"id":999},"chat":{"id":888,"type":"private"},"text":"/start %s"}}`, link.Token)
	env = decode(t, f.do(http.MethodPost, "/api/v1/integrations/telegram/webhook/"+webhookSecret, 0, update), http.StatusOK)
	if !strings.Contains(string(env.Data), string(telegramUC.OutcomeLinked)) {
		t.Fatalf("expected linked outcome, got %s", env.Data)
	}

	env = decode(t, f.do(http.MethodPost, "/api/v1/integrations/telegram/webhook/"+webhookSecret, 0, update), http.StatusOK)
	if !strings.Contains(string(env.Data), string(telegramUC.OutcomeDuplicate)) {
		t.Fatalf("expected duplicate outcome, got %s", env.Data)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.health.status = monitor.Status{PostgreSQL: true, Redis: true, Outbox: true, Telegram: "closed"}
	decode(t, f.do(http.MethodGet, "/health", 0, ""), http.StatusOK)

	f.health.status.Redis = false
	env := decode(t, f.do(http.MethodGet, "/health", 0, ""), http.StatusServiceUnavailable)
	if env.Code != "DEGRADED" {
		t.Fatalf("unexpected code %q", env.Code)
	}
}
