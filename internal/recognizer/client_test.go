package recognizer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/bounan/Bounan.Matcher/internal/audio"
)

type fakeStream struct {
	windows []audio.Window
	i       int
	err     error
	failAt  int
}

func (s *fakeStream) Next() bool {
	if s.failAt > 0 && s.i == s.failAt {
		s.err = errors.New("segment download failed")
		return false
	}
	if s.i >= len(s.windows) {
		return false
	}
	s.i++
	return true
}

func (s *fakeStream) Window() audio.Window { return s.windows[s.i-1] }
func (s *fakeStream) Err() error           { return s.err }

func stubRecognizer(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "RECOGNIZER_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	scanner := bufio.NewScanner(os.Stdin)
	switch os.Getenv("RECOGNIZER_HELPER_MODE") {
	case "fail":
		fmt.Fprintln(os.Stderr, "model load failed: fingerprint db missing")
		os.Exit(3)
	case "sparse":
		for scanner.Scan() {
			fmt.Println(`{"start":5.5}`)
		}
	case "garbage":
		for scanner.Scan() {
			fmt.Println(`not json at all`)
		}
	default:
		i := 0
		for scanner.Scan() {
			var req struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || req.Path == "" {
				fmt.Fprintln(os.Stderr, "malformed clip request")
				os.Exit(2)
			}
			fmt.Printf("{\"start\":%d,\"end\":%d.5}\n", i, i+20)
			i++
		}
	}
}

func TestNewCLIAppliesOptions(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/series-recognizer"), WithSeriesWindow(3))
	if cli.binary != "/opt/series-recognizer" {
		t.Fatalf("expected binary override, got %q", cli.binary)
	}
	if cli.window != 3 {
		t.Fatalf("expected series window override, got %d", cli.window)
	}
}

func TestRecognizeOneGuessPerClip(t *testing.T) {
	stubRecognizer(t, "echo")
	stream := &fakeStream{windows: []audio.Window{
		{Path: "/tmp/a.wav", Offset: 0, Duration: 360},
		{Path: "/tmp/b.wav", Offset: 0, Duration: 360},
		{Path: "/tmp/c.wav", Offset: 0, Duration: 300},
	}}

	guesses, err := NewCLI().Recognize(context.Background(), stream)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(guesses) != 3 {
		t.Fatalf("expected 3 guesses, got %d", len(guesses))
	}
	if guesses[1].Start != 1 || guesses[1].End != 21.5 {
		t.Fatalf("unexpected second guess: %+v", guesses[1])
	}
}

func TestRecognizeMissingBoundsBecomeNaN(t *testing.T) {
	stubRecognizer(t, "sparse")
	stream := &fakeStream{windows: []audio.Window{{Path: "/tmp/a.wav", Duration: 360}}}

	guesses, err := NewCLI().Recognize(context.Background(), stream)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if guesses[0].Start != 5.5 {
		t.Fatalf("expected start 5.5, got %v", guesses[0].Start)
	}
	if !math.IsNaN(guesses[0].End) {
		t.Fatalf("expected NaN end, got %v", guesses[0].End)
	}
}

func TestRecognizeGarbageAnswerBecomesNaNInterval(t *testing.T) {
	stubRecognizer(t, "garbage")
	stream := &fakeStream{windows: []audio.Window{{Path: "/tmp/a.wav", Duration: 360}}}

	guesses, err := NewCLI().Recognize(context.Background(), stream)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if !math.IsNaN(guesses[0].Start) || !math.IsNaN(guesses[0].End) {
		t.Fatalf("expected NaN interval, got %+v", guesses[0])
	}
}

func TestRecognizeSurfacesBinaryFailureWithStderr(t *testing.T) {
	stubRecognizer(t, "fail")
	stream := &fakeStream{windows: []audio.Window{{Path: "/tmp/a.wav", Duration: 360}}}

	_, err := NewCLI().Recognize(context.Background(), stream)
	if err == nil {
		t.Fatal("expected error when binary exits non-zero")
	}
	if !strings.Contains(err.Error(), "fingerprint db missing") {
		t.Fatalf("expected stderr tail in error, got: %v", err)
	}
}

func TestRecognizeSurfacesStreamFailure(t *testing.T) {
	stubRecognizer(t, "echo")
	stream := &fakeStream{
		windows: []audio.Window{
			{Path: "/tmp/a.wav", Duration: 360},
			{Path: "/tmp/b.wav", Duration: 360},
		},
		failAt: 1,
	}

	_, err := NewCLI().Recognize(context.Background(), stream)
	if err == nil {
		t.Fatal("expected stream failure to surface")
	}
	if !strings.Contains(err.Error(), "segment download failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}
