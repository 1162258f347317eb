package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/taskpulse/pkg/logger"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
)

type metadataKey struct{}

// Metadata describes the HTTP request behind a context.
type Metadata struct {
	RequestID  string
	RemoteAddr string
	UserAgent  string
	Path       string
}

// MetadataFrom returns the request metadata attached by Attach.
func MetadataFrom(ctx context.Context) (Metadata, bool) {
	if ctx == nil {
		return Metadata{}, false
	}
	md, ok := ctx.Value(metadataKey{}).(Metadata)
	return md, ok
}

// Adapter turns a fasthttp request into a deadline-bound context.Context.
type Adapter struct {
	timeout time.Duration
}

func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{timeout: timeout}
}

// Attach derives a context bounded by the request timeout and echoes the
// request id in the response headers.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	md := Metadata{RequestID: requestID(ctx)}
	if ctx != nil {
		if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
			md.RemoteAddr = remoteAddr.String()
		}
		md.UserAgent = string(ctx.Request.Header.UserAgent())
		md.Path = string(ctx.Path())
		ctx.Response.Header.Set(RequestIDHeader, md.RequestID)
	}

	stdCtx = appLogger.ContextWithRequestID(stdCtx, md.RequestID)
	stdCtx = context.WithValue(stdCtx, metadataKey{}, md)
	return stdCtx, cancel
}

// requestID keeps a caller supplied id when it is short printable ASCII.
func requestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	header := strings.TrimSpace(string(ctx.Request.Header.Peek(RequestIDHeader)))
	if header == "" || len(header) > maxRequestIDLength {
		return uuid.NewString()
	}
	for i := 0; i < len(header); i++ {
		if header[i] < 0x21 || header[i] > 0x7e {
			return uuid.NewString()
		}
	}
	return header
}
