package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/mdreveal/config"
	"pkt.systems/mdreveal/store"
)

func TestOpenInputFileAndURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.md")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	ctx := context.Background()
	reader, closer, err := openInputs(ctx, []string{path}, nil)
	if err != nil {
		t.Fatalf("openInputs file: %v", err)
	}
	defer func() { _ = closer.Close() }()
	buf, _ := io.ReadAll(reader)
	if string(buf) != "hello" {
		t.Fatalf("unexpected file content: %q", string(buf))
	}

	reader, closer, err = openInputs(ctx, []string{"file://" + path}, nil)
	if err != nil {
		t.Fatalf("openInputs file URL: %v", err)
	}
	defer func() { _ = closer.Close() }()
	buf, _ = io.ReadAll(reader)
	if string(buf) != "hello" {
		t.Fatalf("unexpected file URL content: %q", string(buf))
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("stream"))
	}))
	defer srv.Close()
	reader, closer, err = openInputs(ctx, []string{srv.URL}, nil)
	if err != nil {
		t.Fatalf("openInputs http: %v", err)
	}
	defer func() { _ = closer.Close() }()
	buf, _ = io.ReadAll(reader)
	if string(buf) != "stream" {
		t.Fatalf("unexpected http content: %q", string(buf))
	}
}

func TestOpenInputsConcatenates(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.md")
	second := filepath.Join(dir, "b.md")
	if err := os.WriteFile(first, []byte("one "), 0o644); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := os.WriteFile(second, []byte("two"), 0o644); err != nil {
		t.Fatalf("write second: %v", err)
	}
	reader, closer, err := openInputs(context.Background(), []string{first, second}, nil)
	if err != nil {
		t.Fatalf("openInputs concat: %v", err)
	}
	defer func() { _ = closer.Close() }()
	buf, _ := io.ReadAll(reader)
	if string(buf) != "one two" {
		t.Fatalf("unexpected concatenated content: %q", string(buf))
	}
}

func TestOpenInputsReportsMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.md")
	reader, closer, err := openInputs(context.Background(), []string{missing}, nil)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()
	_, err = io.ReadAll(reader)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.md")
}

func TestOpenInputsDefaultsToStdin(t *testing.T) {
	stdin := strings.NewReader("piped")
	reader, closer, err := openInputs(context.Background(), nil, stdin)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.Same(t, stdin, reader)
}

func TestResolveOSC8(t *testing.T) {
	cases := map[string]bool{
		"on":  true,
		"off": false,
		"1":   true,
		"0":   false,
	}
	for input, want := range cases {
		got, err := resolveOSC8(input)
		if err != nil {
			t.Fatalf("resolveOSC8(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("resolveOSC8(%q)=%v want %v", input, got, want)
		}
	}
	if _, err := resolveOSC8("nope"); err == nil {
		t.Fatalf("expected error for invalid osc8 value")
	}
}

func TestNormalizeOSC8(t *testing.T) {
	mode, err := normalizeOSC8(" YES ")
	require.NoError(t, err)
	assert.Equal(t, config.OSC8On, mode)
	mode, err = normalizeOSC8("")
	require.NoError(t, err)
	assert.Equal(t, config.OSC8Auto, mode)
}

func TestSessionKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	assert.Equal(t, "stdin", sessionKey(nil))
	assert.Equal(t, path, sessionKey([]string{path}))
	assert.Equal(t, sessionKey([]string{path}), sessionKey([]string{"file://" + path}))
	assert.Equal(t, path+" https://example.com/b.md", sessionKey([]string{path, "https://example.com/b.md"}))
}

func TestResolveWidthPrefersExplicitValue(t *testing.T) {
	assert.Equal(t, 42, resolveWidth(42, &bytes.Buffer{}))
	t.Setenv("COLUMNS", "63")
	assert.Equal(t, 63, resolveWidth(0, &bytes.Buffer{}))
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("COLUMNS", "80")
	var stdout, stderr bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code := run(ctx, args, strings.NewReader(stdin), &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunVersionAndThemes(t *testing.T) {
	res := runCLI(t, "", "--version")
	assert.Equal(t, 0, res.code)
	assert.NotEmpty(t, strings.TrimSpace(res.stdout))

	res = runCLI(t, "", "--list-themes")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, strings.Split(strings.TrimSpace(res.stdout), "\n"), "default")
}

func TestRunRejectsBadInvocations(t *testing.T) {
	assert.Equal(t, 2, runCLI(t, "", "--no-such-flag").code)
	assert.Equal(t, 2, runCLI(t, "", "--theme", "nope").code)
	assert.Equal(t, 2, runCLI(t, "", "--osc8", "sometimes").code)
	res := runCLI(t, "", "--resume")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "--state-db")
}

func TestRunRevealsFile(t *testing.T) {
	path := writeDoc(t, "# Title\n\nHello **world**")
	res := runCLI(t, "", "--interval", "1ms", "--chunk", "3", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "Title\n\nHello world\n", res.stdout)
}

func TestRunRevealsStdin(t *testing.T) {
	res := runCLI(t, "---\ntitle: x\n---\nplain *text*", "--interval", "1ms", "--chunk", "4")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "plain text\n", res.stdout)
}

func TestRunSimulatedStream(t *testing.T) {
	path := writeDoc(t, "one two three")
	res := runCLI(t, "", "--interval", "1ms", "--simulate", "--simulate-chunk", "2", "--simulate-delay", "1ms", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "one two three\n", res.stdout)
}

func TestRunWritesOutputFile(t *testing.T) {
	path := writeDoc(t, "saved")
	out := filepath.Join(t.TempDir(), "nested", "out.txt")
	res := runCLI(t, "", "--interval", "1ms", "-o", out, path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "saved\n", string(data))
}

func TestRunStopAfterShowsEndMessage(t *testing.T) {
	path := writeDoc(t, strings.Repeat("slow text ", 20))
	res := runCLI(t, "", "--interval", "50ms", "--stop-after", "20ms", "--end-message", "[cut]", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.True(t, strings.HasSuffix(res.stdout, "[cut]\n"), res.stdout)
}

func TestRunSavesAndResumes(t *testing.T) {
	path := writeDoc(t, "# Title\n\nHello world")
	db := filepath.Join(t.TempDir(), "state.db")

	res := runCLI(t, "", "--interval", "40ms", "--chunk", "4", "--stop-after", "10ms", "--state-db", db, path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "(stopped)")

	s, err := store.OpenSQLite(db)
	require.NoError(t, err)
	saved, err := s.Load(context.Background(), sessionKey([]string{path}))
	require.NoError(t, err)
	assert.Less(t, saved.Cursor, len("Title\n\nHello world"))
	require.NoError(t, s.Close())

	res = runCLI(t, "", "--resume", "--state-db", db, path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "Title\n\nHello world\n", res.stdout)

	s, err = store.OpenSQLite(db)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Load(context.Background(), sessionKey([]string{path}))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunResumeWithoutSnapshotStartsOver(t *testing.T) {
	path := writeDoc(t, "fresh")
	db := filepath.Join(t.TempDir(), "state.db")
	res := runCLI(t, "", "--interval", "1ms", "--resume", "--state-db", db, "--key", "unknown", path)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "fresh\n", res.stdout)
	assert.Contains(t, res.stderr, "nothing saved to resume")
}

func TestRunFullScreen(t *testing.T) {
	ready := make(chan tcell.SimulationScreen, 1)
	prev := openScreen
	openScreen = func() (tcell.Screen, error) {
		screen := tcell.NewSimulationScreen("UTF-8")
		if err := screen.Init(); err != nil {
			return nil, err
		}
		screen.SetSize(40, 10)
		ready <- screen
		return screen, nil
	}
	t.Cleanup(func() { openScreen = prev })

	done := make(chan struct{})
	go func() {
		screen := <-ready
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
			}
		}
	}()

	path := writeDoc(t, "# Title\n\nbody")
	res := runCLI(t, "", "--tui", "--interval", "1ms", path)
	close(done)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)
}
