package recognizer

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

//go:embed assets/whisper_worker.py
var workerScript []byte

// LocalConfig holds configuration for the local faster-whisper backend.
type LocalConfig struct {
	Model        string // faster-whisper model name, e.g. "small"
	PythonBin    string // default: "python3"
	Device       string // "", "cpu" or "cuda"; empty means auto-detect
	ChunkSeconds int    // default: 30
}

// LocalEngine runs inference through a long-lived helper process that loads
// the model once and answers newline-delimited JSON requests. The helper is
// not reentrant, so requests are serialized through a single in-flight call.
type LocalEngine struct {
	cfg         LocalConfig
	device      string
	computeType string
	scriptPath  string

	mu     sync.Mutex
	proc   *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	stderr *bytes.Buffer
}

// NewLocalEngine writes the embedded helper script to disk, picks the compute
// device once, and starts the helper so the model is loaded before the first
// request arrives.
func NewLocalEngine(cfg LocalConfig) (*LocalEngine, error) {
	if cfg.Model == "" {
		cfg.Model = "small"
	}
	if cfg.PythonBin == "" {
		cfg.PythonBin = "python3"
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 30
	}

	device, computeType := detectDevice(cfg.Device)

	f, err := os.CreateTemp("", "whisper-worker-*.py")
	if err != nil {
		return nil, fmt.Errorf("write helper script: %w", err)
	}
	if _, err := f.Write(workerScript); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write helper script: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("write helper script: %w", err)
	}

	e := &LocalEngine{
		cfg:         cfg,
		device:      device,
		computeType: computeType,
		scriptPath:  f.Name(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.start(); err != nil {
		os.Remove(e.scriptPath)
		return nil, err
	}

	slog.Info("recognition model loaded",
		"backend", e.Name(), "model", cfg.Model, "device", device, "compute_type", computeType)
	return e, nil
}

func (e *LocalEngine) Name() string  { return "local-whisper" }
func (e *LocalEngine) Model() string { return "faster-whisper/" + e.cfg.Model }

type helperRequest struct {
	AudioPath string `json:"audio_path"`
	Language  string `json:"language,omitempty"`
}

type helperWord struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type helperResponse struct {
	Text      string       `json:"text"`
	Words     []helperWord `json:"words"`
	Error     string       `json:"error"`
	ErrorKind string       `json:"error_kind"`
}

// start launches the helper and waits for its ready line. Caller holds e.mu.
func (e *LocalEngine) start() error {
	cmd := exec.Command(e.cfg.PythonBin, e.scriptPath,
		"--model", e.cfg.Model,
		"--device", e.device,
		"--compute-type", e.computeType,
		"--chunk-length", strconv.Itoa(e.cfg.ChunkSeconds),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("helper stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start helper: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		cmd.Process.Kill()
		cmd.Wait()
		return fmt.Errorf("helper exited before ready: %s", stderrTail(stderr))
	}
	var ready struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &ready); err != nil || ready.Event != "ready" {
		cmd.Process.Kill()
		cmd.Wait()
		return fmt.Errorf("unexpected helper greeting %q", scanner.Text())
	}

	e.proc = cmd
	e.stdin = stdin
	e.stdout = scanner
	e.stderr = stderr
	return nil
}

// stop tears the helper down after a pipe failure so the next request can
// start a fresh one. Caller holds e.mu.
func (e *LocalEngine) stop() {
	if e.proc == nil {
		return
	}
	e.stdin.Close()
	e.proc.Process.Kill()
	e.proc.Wait()
	e.proc = nil
	e.stdin = nil
	e.stdout = nil
}

// Recognize transcribes one audio payload. The temp container file is removed
// on every return path.
func (e *LocalEngine) Recognize(ctx context.Context, req Request) (*Result, error) {
	suffix := ResolveSuffix(req.Filename, req.ContentType)
	path, cleanup, err := writeTempAudio(req.Data, suffix)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.proc == nil {
		if err := e.start(); err != nil {
			return nil, &InferenceError{Err: err}
		}
		slog.Info("recognition helper restarted", "model", e.cfg.Model)
	}

	line, err := json.Marshal(helperRequest{AudioPath: path, Language: req.Language})
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if _, err := e.stdin.Write(append(line, '\n')); err != nil {
		tail := stderrTail(e.stderr)
		e.stop()
		return nil, &InferenceError{Err: fmt.Errorf("write to helper: %w (%s)", err, tail)}
	}

	if !e.stdout.Scan() {
		tail := stderrTail(e.stderr)
		e.stop()
		return nil, &InferenceError{Err: fmt.Errorf("helper exited mid-request: %s", tail)}
	}

	var resp helperResponse
	if err := json.Unmarshal(e.stdout.Bytes(), &resp); err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("parse helper response: %w", err)}
	}

	if resp.Error != "" {
		if resp.ErrorKind == "decode" {
			return nil, &DecodeError{Err: errors.New(resp.Error)}
		}
		return nil, &InferenceError{Err: errors.New(resp.Error)}
	}

	return &Result{Text: resp.Text, Words: collectWords(resp.Words)}, nil
}

// collectWords converts helper output into the engine's word sequence,
// dropping empty tokens and keeping unaligned ones with nil offsets.
func collectWords(in []helperWord) []Word {
	words := make([]Word, 0, len(in))
	for _, w := range in {
		token := strings.TrimSpace(w.Word)
		if token == "" {
			continue
		}
		words = append(words, Word{Word: token, Start: w.Start, End: w.End})
	}
	return words
}

func (e *LocalEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer os.Remove(e.scriptPath)
	if e.proc == nil {
		return nil
	}

	// Closing stdin asks the helper to exit; give it a moment before killing.
	e.stdin.Close()
	done := make(chan error, 1)
	go func() { done <- e.proc.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.proc.Process.Kill()
		<-done
	}
	e.proc = nil
	e.stdin = nil
	e.stdout = nil
	return nil
}

func stderrTail(buf *bytes.Buffer) string {
	const max = 512
	s := strings.TrimSpace(buf.String())
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	if s == "" {
		return "no stderr output"
	}
	return s
}
