package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"snapsheet/internal/config"
	"snapsheet/internal/faults"
)

var commandContext = exec.CommandContext

// ErrorMessage is the sentinel recorded in place of generated fields when
// an invocation fails.
const ErrorMessage = "Failed to generate description"

// ErrorRecord returns the sentinel record for a failed generation.
func ErrorRecord() map[string]string {
	return map[string]string{"error": ErrorMessage}
}

// Client produces descriptive fields for one image file.
type Client interface {
	Generate(ctx context.Context, imagePath string) (map[string]string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the external generator command.
type CLI struct {
	command string
	script  string
	timeout time.Duration
}

// NewCLI constructs a client from the generator configuration.
func NewCLI(cfg config.Generator, opts ...Option) *CLI {
	cli := &CLI{
		command: cfg.Command,
		script:  cfg.Script,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	if cli.command == "" {
		cli.command = "python3"
	}
	if cli.timeout <= 0 {
		cli.timeout = 120 * time.Second
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Generate runs the generator on one image and returns its fields. The
// process receives the image path as its final argument and must print a
// single JSON object to stdout. Stderr output with no usable stdout,
// unparsable output, nonzero exit, and timeout all count as failures.
func (c *CLI) Generate(ctx context.Context, imagePath string) (map[string]string, error) {
	if strings.TrimSpace(imagePath) == "" {
		return nil, faults.Wrap(faults.ErrValidation, "generator", "generate", "image path required", nil)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := make([]string, 0, 2)
	if c.script != "" {
		args = append(args, c.script)
	}
	args = append(args, imagePath)

	cmd := commandContext(runCtx, c.command, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, faults.Wrap(faults.ErrExternalTool, "generator", "generate", fmt.Sprintf("timed out after %s", c.timeout), runCtx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "process failed"
		}
		return nil, faults.Wrap(faults.ErrExternalTool, "generator", "generate", detail, err)
	}

	fields, err := parseRecord(stdout.Bytes())
	if err != nil {
		return nil, faults.Wrap(faults.ErrExternalTool, "generator", "parse output", strings.TrimSpace(stderr.String()), err)
	}
	return fields, nil
}

func parseRecord(output []byte) (map[string]string, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return nil, errors.New("generator produced no output")
	}

	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("parse generator json: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("generator json object is empty")
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		fields[key] = stringifyValue(value)
	}
	return fields, nil
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

var _ Client = (*CLI)(nil)
