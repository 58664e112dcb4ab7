package whisper

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/kbukum/remworker/transcription"
)

// fakeTool writes a shell script that echoes its arguments to args.txt and
// prints body.
func fakeTool(t *testing.T, body string, exit int) (bin, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	bin = filepath.Join(dir, "transcribe.sh")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\ncat <<'JSON'\n" + body + "\nJSON\nexit " + strconv.Itoa(exit) + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, argsFile
}

func TestCLITranscribe(t *testing.T) {
	bin, argsFile := fakeTool(t, `{"language":"de","language_probability":0.91234,"duration":0,
		"segments":[{"start":0.004,"end":2.226,"text":" hallo "},{"start":2.5,"end":3,"text":"welt"}]}`, 0)
	p := NewCLIProvider(CLIConfig{Binary: bin, Args: []string{"--beam-size", "5"}, Device: "cpu"})
	if !p.IsAvailable(context.Background()) {
		t.Fatal("tool should be available")
	}

	audio := writeAudio(t)
	res, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: audio, Language: "de"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Language != "de" || res.LanguageProbability != 0.9123 || res.DurationSeconds != 3 {
		t.Errorf("result = %+v", res)
	}
	if res.FullText != "hallo welt" || res.Segments[0].Start != 0 || res.Segments[0].End != 2.23 {
		t.Errorf("segments = %+v", res.Segments)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "--beam-size 5 --audio " + audio + " --model base --language de --device cpu"
	if got := strings.TrimSpace(string(raw)); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestCLITranscribe_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		exit int
	}{
		{"non-zero exit", `{}`, 2},
		{"garbage output", `not json`, 0},
		{"segment ends before start", `{"segments":[{"start":5,"end":4,"text":"b"}]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, _ := fakeTool(t, tt.body, tt.exit)
			p := NewCLIProvider(CLIConfig{Binary: bin})
			if _, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: writeAudio(t)}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCLIUnavailable(t *testing.T) {
	p := NewCLIProvider(CLIConfig{Binary: filepath.Join(t.TempDir(), "missing")})
	if p.IsAvailable(context.Background()) {
		t.Error("missing binary reported available")
	}

	bin, _ := fakeTool(t, `{}`, 1)
	crashing := NewCLIProvider(CLIConfig{Binary: bin, MaxFailures: 1})
	_, _ = crashing.Transcribe(context.Background(), transcription.Request{AudioPath: "x.wav"})
	if crashing.IsAvailable(context.Background()) {
		t.Error("crashing tool should trip the breaker")
	}
}
