package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reliefbridge/fundledger/pkg/auth"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

// statusRecorder remembers the status code and body size written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestTrace is filled in by inner middleware so the request log can name
// the caller. Auth runs on a derived request, so its context never reaches
// this far out on its own.
type requestTrace struct {
	actor    auth.Actor
	hasActor bool
}

const ctxTrace contextKey = "request_trace"

func traceFromContext(ctx context.Context) *requestTrace {
	if ctx == nil {
		return nil
	}
	trace, _ := ctx.Value(ctxTrace).(*requestTrace)
	return trace
}

// noteActor records the authenticated caller for the request log.
func noteActor(ctx context.Context, actor auth.Actor) {
	if trace := traceFromContext(ctx); trace != nil {
		trace.actor = actor
		trace.hasActor = true
	}
}

// Logging writes one line when a request starts and one when it completes.
// The completion line carries the matched route pattern, the status, the
// ledger account in the path and the caller once Auth has identified them.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trace := &requestTrace{}
			ctx := context.WithValue(r.Context(), ctxTrace, trace)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
				})
				logg.Info(ctx, "request.start")
			}

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			if logg == nil {
				return
			}
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]any{
				"status":      status,
				"bytes":       rec.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(ctx); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					fields["route"] = pattern
				}
				if accountID := rctx.URLParam("accountId"); accountID != "" {
					ctx = logg.WithAccountID(ctx, accountID)
				}
			}
			ctx = logg.WithFields(ctx, fields)
			if trace.hasActor {
				ctx = logg.WithActorID(ctx, trace.actor.UserID.String())
				ctx = logg.WithActorRole(ctx, string(trace.actor.Role))
			}

			switch {
			case status >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.failed")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}
