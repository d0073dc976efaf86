package logutil

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

type (
	key byte
)

var (
	loggerKey = key(1)
)

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetOrDefault returns the logger attached to ctx, either by WithLogger or
// by the http middleware, falling back to the global logger.
func GetOrDefault(ctx context.Context) zerolog.Logger {
	if v, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return v
	}
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return log.Logger
}

// New builds the process logger. format "console" gives human friendly
// output, anything else writes json lines.
func New(out io.Writer, level, format string) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Logger{}, err
		}
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// Middleware attaches a request scoped logger to every request and logs one
// line per response.
func Middleware(logger zerolog.Logger, next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("http.req.method", r.Method).
			Str("http.req.path", r.URL.Path).
			Int("http.resp.status", status).
			Int("http.resp.bytes", size).
			Dur("http.resp.took", duration).
			Msg("Request completed")
	})(next)
	h = requestID(h)
	h = hlog.RemoteAddrHandler("http.req.remote")(h)
	return hlog.NewHandler(logger)(h)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		l := zerolog.Ctx(r.Context())
		l.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("http.req.id", id)
		})
		next.ServeHTTP(w, r)
	})
}
