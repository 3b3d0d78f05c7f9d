// Package process streams completions through an external HTTP client
// process (curl by default). The request body is written to the child's
// stdin and no shell is involved, so prompt text never reaches an argv or
// shell parser.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ineyio/llmstream"
)

const (
	defaultCommand = "curl"
	stderrLimit    = 4096
	bodyTailLimit  = 1024

	// statusMarker prefixes the line curl writes after the body with the
	// final HTTP status code.
	statusMarker = "llmstream-http-status: "
	waitDelay      = 2 * time.Second
)

// Transport spawns one process per request.
type Transport struct {
	command string
	prefix  []string
	logger  *slog.Logger
}

var _ llmstream.Transport = (*Transport)(nil)

// Option configures the transport.
type Option func(*Transport)

// WithCommand sets the executable and arguments placed before the generated ones.
func WithCommand(path string, args ...string) Option {
	return func(t *Transport) {
		t.command = path
		t.prefix = args
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New creates a Transport running curl from PATH.
func New(opts ...Option) *Transport {
	t := &Transport{command: defaultCommand}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Args returns the argument vector for req. The body is not part of it.
func (t *Transport) Args(req llmstream.Request) ([]string, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	args := append([]string(nil), t.prefix...)
	args = append(args, "--silent", "--show-error", "--no-buffer", "--request", "POST")

	names := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := req.Headers[name]
		if err := validateHeader(name, value); err != nil {
			return nil, err
		}
		args = append(args, "--header", name+": "+value)
	}

	args = append(args,
		"--write-out", `\n`+statusMarker+`%{http_code}\n`,
		"--data-binary", "@-",
		"--url", req.URL,
	)
	return args, nil
}

func (t *Transport) Start(ctx context.Context, req llmstream.Request) (llmstream.LineStream, error) {
	args, err := t.Args(req)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // arguments are validated and no shell is used.
	cmd := exec.CommandContext(ctx, t.command, args...)
	cmd.Stdin = bytes.NewReader(req.Body)
	cmd.WaitDelay = waitDelay

	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %w", llmstream.ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", llmstream.ErrSpawn, t.command, err)
	}

	t.logger.Debug("transport started",
		"pid", cmd.Process.Pid,
		"command", CommandLine(t.command, args),
	)

	return &stream{
		cmd:    cmd,
		reader: bufio.NewReader(stdout),
		stderr: stderr,
		logger: t.logger,
	}, nil
}

// stream reads the child's stdout line by line.
// Next and Close must be called from the same goroutine.
type stream struct {
	cmd    *exec.Cmd
	reader *bufio.Reader
	stderr *limitedBuffer
	logger *slog.Logger

	output   bool // at least one non-blank line was produced
	status   int  // final HTTP status, 0 if curl did not report one
	tail     string
	finalErr error

	waitOnce sync.Once
	waitErr  error
	waited   bool
}

func (s *stream) Next() (string, error) {
	if s.finalErr != nil {
		return "", s.finalErr
	}

	for {
		line, err := s.reader.ReadString('\n')
		if line != "" && (err == nil || errors.Is(err, io.EOF)) {
			// A final line without a newline is still a line; EOF comes next call.
			line = strings.TrimRight(line, "\r\n")
			if code, ok := strings.CutPrefix(line, statusMarker); ok {
				s.status, _ = strconv.Atoi(code)
				continue
			}
			if line != "" {
				s.output = true
			}
			s.keepTail(line)
			return line, nil
		}

		s.finalErr = s.finish(err)
		return "", s.finalErr
	}
}

// keepTail retains the last bodyTailLimit bytes of output for error messages.
func (s *stream) keepTail(line string) {
	s.tail += line + "\n"
	if len(s.tail) > bodyTailLimit {
		s.tail = s.tail[len(s.tail)-bodyTailLimit:]
	}
}

func (s *stream) finish(readErr error) error {
	waitErr := s.wait()

	// The provider answered with an error document instead of a stream.
	if s.status != 0 {
		if err := llmstream.StatusError(s.status, s.tail); err != nil {
			return err
		}
	}

	if waitErr == nil {
		return io.EOF
	}

	if s.output {
		s.logger.Warn("transport exited after streaming",
			"pid", s.cmd.Process.Pid,
			"error", waitErr,
			"stderr", s.stderr.String(),
		)
		return io.EOF
	}

	if readErr != nil && !errors.Is(readErr, io.EOF) {
		waitErr = errors.Join(waitErr, readErr)
	}
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return fmt.Errorf("%w: %w: %s", llmstream.ErrTransportExit, waitErr, msg)
	}
	return fmt.Errorf("%w: %w", llmstream.ErrTransportExit, waitErr)
}

func (s *stream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		s.waited = true
	})
	return s.waitErr
}

// Close kills the process if it is still running and reaps it.
func (s *stream) Close() error {
	if !s.waited {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	if s.finalErr == nil {
		s.finalErr = io.EOF
	}
	return nil
}

func validateURL(raw string) error {
	if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
		return fmt.Errorf("%w: unsupported url %q", llmstream.ErrInvalidRequest, raw)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("%w: url contains whitespace", llmstream.ErrInvalidRequest)
	}
	return nil
}

func validateHeader(name, value string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", llmstream.ErrInvalidHeader)
	}
	for _, r := range name {
		if !isTokenChar(r) {
			return fmt.Errorf("%w: name %q", llmstream.ErrInvalidHeader, name)
		}
	}
	if strings.ContainsAny(value, "\r\n\x00") {
		return fmt.Errorf("%w: value of %s contains a line break", llmstream.ErrInvalidHeader, name)
	}
	return nil
}

func isTokenChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
