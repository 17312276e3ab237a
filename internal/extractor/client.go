package extractor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"go.uber.org/zap"
)

const maxFrameBytes = 16 << 20

// Extractor turns document files into invoice data.
type Extractor interface {
	Extract(ctx context.Context, files []string) (*Result, error)
}

// Config describes how to launch the extraction program.
type Config struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
	// Env is appended to the current process environment.
	Env []string
}

// Client runs one extraction program process per call.
type Client struct {
	cfg Config
	log *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{cfg: cfg, log: logger.Named("extractor")}
}

// Extract runs the program on files. Timeouts are retryable dependency errors;
// protocol violations and crashes are not.
func (c *Client) Extract(ctx context.Context, files []string) (*Result, error) {
	req, err := json.Marshal(Request{Version: ProtocolVersion, Files: files})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "encode extractor request")
	}

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.cfg.Command, c.cfg.Args...)
	cmd.Dir = c.cfg.Dir
	cmd.Env = append(os.Environ(), c.cfg.Env...)
	cmd.Stdin = bytes.NewReader(append(req, '\n'))
	cmd.WaitDelay = 2 * time.Second
	var stderr tailBuffer
	cmd.Stderr = &stderr

	pr, pw := io.Pipe()
	cmd.Stdout = pw

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, appErr.Dependency(err, "Extraction engine could not be started", false)
	}

	type readOutcome struct {
		terminal *Frame
		err      error
	}
	read := make(chan readOutcome, 1)
	go func() {
		t, err := c.readFrames(pr)
		_, _ = io.Copy(io.Discard, pr)
		read <- readOutcome{terminal: t, err: err}
	}()

	waitErr := cmd.Wait()
	_ = pw.Close()
	out := <-read
	terminal, protoErr := out.terminal, out.err

	fields := []zap.Field{zap.Int("files", len(files)), zap.Duration("duration", time.Since(start))}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		c.log.Warn("extractor timed out", append(fields, zap.Duration("timeout", c.cfg.Timeout))...)
		return nil, appErr.Wrap(runCtx.Err(), appErr.CodeDeadline, "Extraction timed out").WithRetryable(true)
	}
	if ctx.Err() != nil {
		return nil, appErr.Dependency(ctx.Err(), "Extraction canceled", true)
	}
	if protoErr != nil {
		c.log.Error("extractor protocol violation", append(fields, zap.Error(protoErr))...)
		return nil, appErr.Dependency(protoErr, "Extraction engine returned a malformed response", false)
	}
	if waitErr != nil {
		c.log.Error("extractor failed", append(fields, zap.Error(waitErr), zap.String("stderr", stderr.String()))...)
		return nil, appErr.Dependency(waitErr, "Extraction engine failed", false)
	}
	if terminal == nil {
		return nil, appErr.Dependency(errors.New("no terminal frame"), "Extraction engine returned no result", false)
	}

	if terminal.Type == FrameError {
		retry := terminal.Retryable != nil && *terminal.Retryable
		c.log.Warn("extractor reported error", append(fields, zap.String("message", terminal.Message), zap.Bool("retryable", retry))...)
		return nil, appErr.Dependency(errors.New(terminal.Message), "Extraction engine reported an error", retry)
	}

	var res Result
	if err := json.Unmarshal(terminal.Data, &res); err != nil {
		return nil, appErr.Dependency(err, "Extraction engine returned a malformed response", false)
	}
	res.Raw = terminal.Data
	c.log.Info("extraction finished", append(fields, zap.Bool("success", res.Success), zap.Int("invoices", len(res.Invoices)))...)
	return &res, nil
}

// readFrames drains stdout. Log frames go to the logger; the single terminal frame is returned.
func (c *Client) readFrames(r io.Reader) (*Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	var terminal *Frame
	var protoErr error
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || protoErr != nil {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			protoErr = fmt.Errorf("malformed frame: %w", err)
			continue
		}
		switch f.Type {
		case FrameLog:
			c.logFrame(f)
		case FrameResult, FrameError:
			if terminal != nil {
				protoErr = errors.New("more than one terminal frame")
				continue
			}
			if f.Type == FrameResult && len(f.Data) == 0 {
				protoErr = errors.New("result frame without data")
				continue
			}
			frame := f
			terminal = &frame
		default:
			protoErr = fmt.Errorf("unknown frame type %q", f.Type)
		}
	}
	if err := sc.Err(); err != nil && protoErr == nil {
		protoErr = fmt.Errorf("read frames: %w", err)
	}
	return terminal, protoErr
}

func (c *Client) logFrame(f Frame) {
	switch strings.ToLower(f.Level) {
	case "debug":
		c.log.Debug(f.Message, zap.String("source", "extractor"))
	case "warn", "warning":
		c.log.Warn(f.Message, zap.String("source", "extractor"))
	case "error":
		c.log.Error(f.Message, zap.String("source", "extractor"))
	default:
		c.log.Info(f.Message, zap.String("source", "extractor"))
	}
}

// tailBuffer keeps the last few KB written to it.
type tailBuffer struct {
	buf []byte
}

const tailLimit = 4 << 10

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > tailLimit {
		t.buf = t.buf[len(t.buf)-tailLimit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
