// Package integration runs the termmeta binary end to end against isolated
// config and data directories.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// commandTimeout bounds a single termmeta invocation.
const commandTimeout = 30 * time.Second

// binary is the built termmeta executable, set once by TestMain.
var binary struct {
	path string
	err  error
}

// buildBinary compiles ./cmd/termmeta of the enclosing module into dir.
func buildBinary(dir string) (string, error) {
	gomod, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		return "", fmt.Errorf("locating go.mod: %w", err)
	}
	root := filepath.Dir(strings.TrimSpace(string(gomod)))

	path := filepath.Join(dir, "termmeta")
	cmd := exec.Command("go", "build", "-o", path, "./cmd/termmeta")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("go build: %w\n%s", err, out)
	}
	return path, nil
}

// TestEnv is an isolated environment with its own config and data directory.
type TestEnv struct {
	t       *testing.T
	TempDir string
	Config  string
	DataDir string
}

// NewTestEnv creates a TestEnv. The config file is written by init.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if binary.err != nil {
		t.Fatalf("termmeta binary unavailable: %v", binary.err)
	}

	dir := t.TempDir()
	return &TestEnv{
		t:       t,
		TempDir: dir,
		Config:  filepath.Join(dir, "config"),
		DataDir: filepath.Join(dir, "data"),
	}
}

// CmdResult holds the result of a termmeta invocation.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes termmeta with the environment's directories and args. The
// Redis cache is always disabled.
func (e *TestEnv) Run(args ...string) CmdResult {
	e.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	argv := append([]string{"--config-dir", e.Config, "--data-dir", e.DataDir}, args...)
	cmd := exec.CommandContext(ctx, binary.path, argv...)
	cmd.Env = append(os.Environ(), "TERMMETA_CACHE_REDIS_ADDR=")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := CmdResult{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			e.t.Fatalf("running termmeta %v: %v", args, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res
}

// MustRun executes termmeta and fails the test on a non-zero exit.
func (e *TestEnv) MustRun(args ...string) CmdResult {
	e.t.Helper()
	res := e.Run(args...)
	if res.ExitCode != 0 {
		e.t.Fatalf("termmeta %v exited %d\nstdout: %s\nstderr: %s", args, res.ExitCode, res.Stdout, res.Stderr)
	}
	return res
}

// MustRunJSON runs termmeta with --json and decodes stdout into T.
func MustRunJSON[T any](e *TestEnv, args ...string) T {
	e.t.Helper()
	res := e.MustRun(append([]string{"--json"}, args...)...)

	var out T
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		e.t.Fatalf("decoding output of %v: %v\n%s", args, err, res.Stdout)
	}
	return out
}

// ID formats an id argument.
func ID(id int64) string { return strconv.FormatInt(id, 10) }

// Term mirrors the JSON of a listed term.
type Term struct {
	TermID   int64  `json:"term_id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
}

// Result mirrors the JSON of a boolean operation.
type Result struct {
	Op string `json:"op"`
	OK bool   `json:"ok"`
}
