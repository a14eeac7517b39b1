// Package lambdaproxy bridges API Gateway HTTP API (payload v2) events to a
// plain http.Handler so the same chi router serves both local HTTP and
// Lambda. Event translation is done by aws-lambda-go-api-proxy's
// httpadapter; this package adds request id propagation, a default status
// and per-invocation hooks.
package lambdaproxy

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// Adapter translates one event into one in-process request.
type Adapter struct {
	proxy       *httpadapter.HandlerAdapterV2
	afterInvoke []func(context.Context)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAfterInvoke registers fn to run once the response has been built and
// before it is handed back to the runtime. The sandbox may be frozen right
// after that, so buffered telemetry is flushed here.
func WithAfterInvoke(fn func(context.Context)) Option {
	return func(a *Adapter) {
		a.afterInvoke = append(a.afterInvoke, fn)
	}
}

// New returns an Adapter that dispatches to h.
func New(h http.Handler, opts ...Option) *Adapter {
	a := &Adapter{proxy: httpadapter.NewV2(defaultStatus(h))}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle is the Lambda entry point: lambda.Start(adapter.Handle).
func (a *Adapter) Handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	evt.Headers = withRequestID(evt.Headers, evt.RequestContext.RequestID)

	resp, err := a.proxy.ProxyWithContext(ctx, evt)

	for _, fn := range a.afterInvoke {
		fn(ctx)
	}
	return resp, err
}

// withRequestID returns headers with X-Request-Id set to the gateway's
// request id unless the client already sent one. The event's map is not
// modified.
func withRequestID(headers map[string]string, id string) map[string]string {
	if id == "" {
		return headers
	}
	for k := range headers {
		if strings.EqualFold(k, "X-Request-Id") {
			return headers
		}
	}
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out["x-request-id"] = id
	return out
}

// defaultStatus writes 200 for handlers that return without writing
// anything; the proxy rejects a response with no status.
func defaultStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if !sw.wrote {
			w.WriteHeader(http.StatusOK)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *statusWriter) WriteHeader(code int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
