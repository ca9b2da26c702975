package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roboricindustries/raycon-micbridge/pkg/channel"
	"github.com/roboricindustries/raycon-micbridge/pkg/shell"
)

// feedLoopback delivers each non-blank line of r as one content message.
func feedLoopback(ctx context.Context, l *channel.Loopback, r io.Reader, logger *slog.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 64<<10)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		l.Deliver(line)
	}
	if err := sc.Err(); err != nil {
		logger.Warn("read stdin", slog.Any("err", err))
	}
}

// goBridge runs the shell on g. With a loopback host it also pumps stdio;
// replies keep draining until the shell has returned so a recording
// finalized on shutdown still reaches w.
func goBridge(ctx context.Context, g *errgroup.Group, sh *shell.Shell, loop *channel.Loopback, r io.Reader, w io.Writer, logger *slog.Logger) {
	runDone := make(chan struct{})
	g.Go(func() error {
		defer close(runDone)
		return sh.Run(ctx)
	})
	if loop == nil {
		return
	}
	go feedLoopback(ctx, loop, r, logger)
	g.Go(func() error { return drainLoopback(runDone, loop, w) })
}

// drainLoopback writes replies one per line until done is closed, then
// flushes whatever is still buffered.
func drainLoopback(done <-chan struct{}, l *channel.Loopback, w io.Writer) error {
	for {
		select {
		case <-done:
			return flushLoopback(l, w)
		case text := <-l.Outbox():
			if err := writeReply(w, text); err != nil {
				return err
			}
		}
	}
}

func flushLoopback(l *channel.Loopback, w io.Writer) error {
	for {
		select {
		case text := <-l.Outbox():
			if err := writeReply(w, text); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func writeReply(w io.Writer, text string) error {
	if _, err := fmt.Fprintln(w, text); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
