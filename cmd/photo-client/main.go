// Command photo-client captures a photo, sends it to the gateway and prints
// the description.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/example/photo-describer/internal/capture"
	"github.com/example/photo-describer/internal/config"
	"github.com/example/photo-describer/internal/logging"
	"github.com/example/photo-describer/internal/session"
	"github.com/example/photo-describer/internal/upload"
)

const help = `commands:
  capture  take a photo
  describe send the photo to the gateway
  retake   discard the photo and its description
  status   show the current state
  quit     exit`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadClient(flag.NewFlagSet("photo-client", flag.ExitOnError), args)
	if err != nil {
		return err
	}

	// Console output belongs to the REPL; logs only show up in debug mode.
	logger := zap.NewNop()
	if cfg.Debug {
		if logger, err = logging.NewLogger(true); err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
	}

	s := session.New(newCamera(cfg.Source), upload.NewClient(cfg.GatewayURL, cfg.Token, &http.Client{}), logger)

	rl, err := readline.NewEx(&readline.Config{
		Prompt: "photo> ",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("capture"),
			readline.PcItem("describe"),
			readline.PcItem("retake"),
			readline.PcItem("status"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	out := rl.Stdout()
	fmt.Fprintf(out, "gateway %s, source %s\n%s\n", cfg.GatewayURL, cfg.Source, help)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF
			return nil
		}
		if quit := dispatch(context.Background(), s, out, strings.TrimSpace(line)); quit {
			return nil
		}
	}
}

func newCamera(source string) capture.Camera {
	if strings.EqualFold(source, "screen") {
		return &capture.ScreenCamera{}
	}
	return &capture.FileCamera{Path: source}
}

func dispatch(ctx context.Context, s *session.Session, out io.Writer, cmd string) bool {
	switch strings.ToLower(cmd) {
	case "":
	case "capture", "c":
		if _, err := s.Capture(ctx); err != nil {
			var capErr *capture.Error
			if errors.As(err, &capErr) {
				fmt.Fprintln(out, session.CaptureFailedMessage)
			} else {
				fmt.Fprintln(out, err)
			}
			return false
		}
		fmt.Fprintln(out, session.Render(s.Snapshot()))
	case "describe", "d":
		describe(ctx, s, out)
	case "retake", "r":
		if err := s.Retake(); err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		fmt.Fprintln(out, session.Render(s.Snapshot()))
	case "status", "s":
		snap := s.Snapshot()
		fmt.Fprintf(out, "[%s] %s\n", snap.State, session.Render(snap))
	case "quit", "q", "exit":
		return true
	default:
		fmt.Fprintln(out, help)
	}
	return false
}

// describe blocks until the gateway answers, showing a spinner meanwhile.
func describe(ctx context.Context, s *session.Session, out io.Writer) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("Describing photo"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	stop := make(chan struct{})
	spun := make(chan struct{})
	go func() {
		defer close(spun)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	_, err := s.Describe(ctx)
	close(stop)
	<-spun
	_ = bar.Finish()

	switch {
	case errors.Is(err, session.ErrNoImage), errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrInvalidTransition):
		fmt.Fprintln(out, err)
	default:
		// Transport failures are already reflected in the snapshot.
		fmt.Fprintln(out, session.Render(s.Snapshot()))
	}
}
