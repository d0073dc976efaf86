package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
)

type (
	// Timeouts applied to every connection, zero values use the defaults.
	Timeouts struct {
		Read       time.Duration
		ReadHeader time.Duration
		Write      time.Duration
		Idle       time.Duration
		Shutdown   time.Duration
	}
)

func (t Timeouts) withDefaults() Timeouts {
	if t.Read == 0 {
		t.Read = time.Minute
	}
	if t.ReadHeader == 0 {
		t.ReadHeader = 10 * time.Second
	}
	if t.Write == 0 {
		t.Write = time.Minute
	}
	if t.Idle == 0 {
		t.Idle = time.Minute * 5
	}
	if t.Shutdown == 0 {
		t.Shutdown = 30 * time.Second
	}
	return t
}

// Serve listens on bind until ctx is done, every request goes through the
// access log middleware.
func Serve(ctx context.Context, bind string, handler http.Handler, timeouts Timeouts) error {
	lst, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return ServeListener(ctx, lst, handler, timeouts)
}

// ServeListener is like Serve but uses an existing listener, which is closed
// when the server stops.
func ServeListener(ctx context.Context, lst net.Listener, handler http.Handler, timeouts Timeouts) error {
	timeouts = timeouts.withDefaults()
	log := logutil.GetOrDefault(ctx)
	server := http.Server{
		Handler:           logutil.Middleware(log, handler),
		Addr:              lst.Addr().String(),
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
		ReadHeaderTimeout: timeouts.ReadHeader,
		IdleTimeout:       timeouts.Idle,
	}
	err := make(chan error, 1)
	done := make(chan struct{})
	go serveInBackground(ctx, &server, lst, timeouts.Shutdown, err, done)
	<-done
	return <-err
}

func serveInBackground(ctx context.Context, server *http.Server, lst net.Listener, shutdownTimeout time.Duration, firstErr chan<- error, done chan<- struct{}) {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", server.Addr).Logger()
	defer close(done)
	serverCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		defer close(firstErr)
		log.Info().Msg("Starting HTTP server")
		err := server.Serve(lst)
		if errors.Is(err, http.ErrServerClosed) {
			log.Info().Msg("Server closed")
			// shutdown called,
			// ignore the error
			return
		} else if err != nil {
			select {
			case firstErr <- err:
			default:
			}
			return
		}
	}()
	select {
	case <-serverCtx.Done():
	case <-ctx.Done():
		log.Info().Msg("Initiating shutdown process")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		server.Shutdown(shutdownCtx)
		log.Info().Msg("Shutdown completed")
	}
}
