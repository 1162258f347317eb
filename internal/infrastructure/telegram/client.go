package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/config"
)

// APIError is a Bot API response with ok=false.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api: %d %s", e.StatusCode, e.Description)
}

// Temporary reports whether retrying the call may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == fasthttp.StatusTooManyRequests || e.StatusCode >= 500
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Client talks to the Bot API through a circuit breaker.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	token   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func New(cfg config.TelegramConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	c := &Client{
		http: &fasthttp.Client{
			Name:         "taskpulse",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		token:   cfg.BotToken,
		timeout: timeout,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && !apiErr.Temporary()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// Enabled reports whether a bot token is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.token != ""
}

// State returns the breaker state name for health reporting.
func (c *Client) State() string {
	if !c.Enabled() {
		return "disabled"
	}
	return c.breaker.State().String()
}

// SendMessage delivers text to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if !c.Enabled() {
		return domain.ErrTelegramUnavailable
	}
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.call(ctx, "sendMessage", payload)
	})
	return err
}

func (c *Client) call(ctx context.Context, method string, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/bot" + c.token + "/" + method)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return &APIError{StatusCode: resp.StatusCode(), Description: "unreadable response"}
	}
	if !parsed.OK {
		code := parsed.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		return &APIError{StatusCode: code, Description: parsed.Description}
	}
	return nil
}
