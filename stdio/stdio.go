// Package stdio serves one implicit MCP session over stdin/stdout.
package stdio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Factory builds the session's MCP server. onActivity fires on every
// inbound message.
type Factory func(onActivity func()) (*mcp.Server, error)

// Config controls the run loop.
type Config struct {
	// IdleTimeout ends the process when no message arrives for this
	// long. Zero disables it.
	IdleTimeout time.Duration

	// LogWire mirrors every line read and written to the logger at
	// debug level.
	LogWire bool

	Logger *slog.Logger
}

// Run serves until the context ends, stdin closes, or the session
// goes idle past the timeout.
func Run(ctx context.Context, factory Factory, cfg Config) error {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	onActivity := func() {}
	if cfg.IdleTimeout > 0 {
		idle := time.AfterFunc(cfg.IdleTimeout, func() {
			log.Info("stdio.idle_timeout", slog.Duration("timeout", cfg.IdleTimeout))
			cancel()
		})
		defer idle.Stop()
		onActivity = func() { idle.Reset(cfg.IdleTimeout) }
	}

	srv, err := factory(onActivity)
	if err != nil {
		return fmt.Errorf("build stdio server: %w", err)
	}

	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	if cfg.LogWire {
		in = &loggingReader{r: in, log: log}
		out = &loggingWriter{w: out, log: log}
	}

	errC := make(chan error, 1)
	go func() {
		errC <- srv.Run(ctx, &mcp.IOTransport{Reader: io.NopCloser(in), Writer: writeCloser{out}})
	}()

	log.Info("stdio.start")
	select {
	case <-ctx.Done():
		log.Info("stdio.shutdown")
		return nil
	case err := <-errC:
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}
}

type writeCloser struct {
	io.Writer
}

func (writeCloser) Close() error { return nil }

type loggingReader struct {
	r   io.Reader
	log *slog.Logger
}

func (l *loggingReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 {
		l.log.Debug("stdio.recv", slog.String("data", string(p[:n])))
	}
	return n, err
}

type loggingWriter struct {
	w   io.Writer
	log *slog.Logger
}

func (l *loggingWriter) Write(p []byte) (int, error) {
	l.log.Debug("stdio.send", slog.String("data", string(p)))
	return l.w.Write(p)
}
