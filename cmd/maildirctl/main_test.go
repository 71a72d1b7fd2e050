package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against root and returns what it printed.
func run(t *testing.T, root string, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MAILDIR_ROOT", root)
	t.Setenv("MAILDIR_LOG_LEVEL", "error")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"maildirctl"}, args...))
	return out.String(), err
}

func TestCLI_DeliverShowFlag(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Mail")

	_, err := run(t, root, "", "init", "")
	require.NoError(t, err)
	_, err = run(t, root, "", "init", "work")
	require.NoError(t, err)

	out, err := run(t, root, "Subject: hello\r\nFrom: a@example.com\r\n\r\nbody\r\n", "deliver", "work")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, root, "", "show", "--headers", "work", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Subject: hello")
	assert.NotContains(t, out, "body")

	out, err = run(t, root, "", "show", "work", id)
	require.NoError(t, err)
	assert.Contains(t, out, "body")

	out, err = run(t, root, "", "flag", "--add", "SF", "work", id)
	require.NoError(t, err)
	assert.Equal(t, "FS\n", out)

	out, err = run(t, root, "", "flag", "--remove", "F", "work", id)
	require.NoError(t, err)
	assert.Equal(t, "S\n", out)

	_, err = run(t, root, "", "flag", "--add", "D", "--set", "T", "work", id)
	assert.Error(t, err)
	_, err = run(t, root, "", "flag", "--add", "D", "--remove", "S", "work", id)
	assert.Error(t, err)
	out, err = run(t, root, "", "flag", "--set", "S", "work", id)
	require.NoError(t, err)
	assert.Equal(t, "S\n", out, "rejected combinations leave flags alone")

	// Flag changes rename in place; the message stays in new.
	out, err = run(t, root, "", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "Mail\t0 new\t0 cur")
	assert.Contains(t, out, "work\t1 new\t0 cur")
}

func TestCLI_MoveCopyRemove(t *testing.T) {
	root := t.TempDir()

	for _, name := range []string{"", "a", "b"} {
		_, err := run(t, root, "", "init", name)
		require.NoError(t, err)
	}
	out, err := run(t, root, "x\r\n", "deliver", "--cur", "--flags", "S", "a")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, err = run(t, root, "", "cp", "a", "b", id)
	require.NoError(t, err)
	assert.FileExists(t, strings.TrimSpace(out))

	// The copy now blocks a move under the same name.
	_, err = run(t, root, "", "mv", "a", "b", id)
	require.Error(t, err)

	_, err = run(t, root, "", "rm", "b", id)
	require.NoError(t, err)

	out, err = run(t, root, "", "mv", "a", "b", id)
	require.NoError(t, err)
	moved := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(root, ".b", "cur"), filepath.Dir(moved))

	_, err = run(t, root, "", "rm", "a")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, ".a"))
}

func TestCLI_Errors(t *testing.T) {
	root := t.TempDir()

	_, err := run(t, root, "", "deliver", "missing")
	assert.Error(t, err, "delivering into a missing mailbox")

	_, err = run(t, root, "", "init", "../up")
	assert.Error(t, err)

	_, err = run(t, root, "", "init", "a")
	require.NoError(t, err)
	_, err = run(t, root, "x", "deliver", "--flags", "S", "a")
	assert.Error(t, err, "--flags without --cur")

	_, err = run(t, root, "", "show", "a")
	assert.Error(t, err, "missing id argument")

	for _, sep := range []string{"::", ",", "S"} {
		t.Setenv("MAILDIR_SEPARATOR", sep)
		_, err = run(t, root, "", "ls")
		assert.Error(t, err, "separator %q", sep)
	}
}

func TestCLI_Clean(t *testing.T) {
	root := t.TempDir()
	_, err := run(t, root, "", "init", "")
	require.NoError(t, err)

	stale := filepath.Join(root, "tmp", "stale")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	out, err := run(t, root, "", "clean", "--max-age", "0s", "")
	require.NoError(t, err)
	assert.Equal(t, "removed 1\n", out)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "maildir.env")
	require.NoError(t, os.WriteFile(file, []byte("MAILDIR_ROOT="+dir+"\nMAILDIR_MAILDIRPP=false\n"), 0o600))

	// godotenv does not override variables that are already set.
	for _, key := range []string{"MAILDIR_ROOT", "MAILDIR_MAILDIRPP", "MAILDIR_SEPARATOR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := loadConfig(file, true)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Root)
	assert.False(t, cfg.MaildirPP)
	assert.Equal(t, ":", cfg.Separator)

	_, err = loadConfig(filepath.Join(dir, "absent.env"), true)
	assert.Error(t, err)
}
