package recognizer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bounan/Bounan.Matcher/internal/audio"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

var commandContext = exec.CommandContext

// WindowStream is a sequence of audio clips. The recognizer consumes clips
// in lock step: each clip is fully recognized before the stream advances,
// so the stream may reclaim a clip's file as soon as Next is called again.
type WindowStream interface {
	Next() bool
	Window() audio.Window
	Err() error
}

// Client defines recurring-scene recognition behaviour.
type Client interface {
	Recognize(ctx context.Context, stream WindowStream) ([]scene.Interval, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithSeriesWindow sets the cross-episode comparison radius passed to the
// binary.
func WithSeriesWindow(episodes int) Option {
	return func(c *CLI) {
		if episodes > 0 {
			c.window = episodes
		}
	}
}

// WithTimeout bounds a whole Recognize run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the external recognition binary. One process is launched per
// Recognize call; clips are described on stdin as JSON lines and the binary
// answers with one JSON line per clip carrying the raw interval guess,
// relative to the clip's own timeline.
type CLI struct {
	binary  string
	window  int
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "series-recognizer", window: 5}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

type clipRequest struct {
	Path     string  `json:"path"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// Recognize feeds every clip in the stream to the binary and collects one
// interval guess per clip. Missing or non-numeric bounds in the binary's
// answer come back as NaN so downstream validity checks reject them.
func (c *CLI) Recognize(ctx context.Context, stream WindowStream) ([]scene.Interval, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"--series-window", strconv.Itoa(c.window)}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.binary, err)
	}

	guesses, streamErr := c.exchange(stream, stdin, stdout)
	_ = stdin.Close()

	if waitErr := cmd.Wait(); waitErr != nil {
		return nil, fmt.Errorf("%s failed: %w%s", c.binary, waitErr, stderrTail(&stderr))
	}
	if streamErr != nil {
		return nil, streamErr
	}
	return guesses, nil
}

func (c *CLI) exchange(stream WindowStream, stdin io.Writer, stdout io.Reader) ([]scene.Interval, error) {
	reader := bufio.NewReader(stdout)
	var guesses []scene.Interval
	for stream.Next() {
		w := stream.Window()
		line, err := json.Marshal(clipRequest{Path: w.Path, Offset: w.Offset, Duration: w.Duration})
		if err != nil {
			return nil, fmt.Errorf("encode clip request: %w", err)
		}
		if _, err := stdin.Write(append(line, '\n')); err != nil {
			return nil, fmt.Errorf("send clip %s: %w", w.Path, err)
		}
		answer, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read answer for clip %s: %w", w.Path, err)
		}
		guesses = append(guesses, parseGuess(answer))
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("window stream: %w", err)
	}
	return guesses, nil
}

func parseGuess(line string) scene.Interval {
	return scene.Interval{
		Start: numberOrNaN(gjson.Get(line, "start")),
		End:   numberOrNaN(gjson.Get(line, "end")),
	}
}

func numberOrNaN(r gjson.Result) float64 {
	if r.Type != gjson.Number {
		return math.NaN()
	}
	return r.Num
}

func stderrTail(buf *bytes.Buffer) string {
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return ""
	}
	const maxTail = 512
	if len(text) > maxTail {
		text = text[len(text)-maxTail:]
	}
	return ": " + text
}

var _ Client = (*CLI)(nil)
