package stock_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/options"
	"github.com/gruntwork-io/actiontree/runner"
	"github.com/gruntwork-io/actiontree/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		action   *action.Action
		expected string
	}{
		{stock.Null(), ""},
		{stock.Sleep(1500 * time.Millisecond), "sleep 1.5s"},
		{stock.CreateDirectory("xxx"), "mkdir xxx"},
		{stock.DeleteFile("xxx"), "rm xxx"},
		{stock.CopyFile("from", "to"), "cp from to"},
		{stock.TouchFile("xxx"), "touch xxx"},
		{stock.CallSubprocess("xxx", "yyy", "zzz"), "xxx yyy zzz"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, tc.action.Label())
		})
	}
}

func run(t *testing.T, a *action.Action, opts ...runner.Option) error {
	t.Helper()

	_, err := runner.Execute(t.Context(), a, opts...)

	return err
}

func TestCreateDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, run(t, stock.CreateDirectory(dir)))
	assert.DirExists(t, dir)

	require.NoError(t, run(t, stock.CreateDirectory(dir)), "existing directory")

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := run(t, stock.CreateDirectory(file))

	var notDir *stock.PathIsNotDirectoryError
	require.ErrorAs(t, err, &notDir)
	assert.Equal(t, file, notDir.Path)
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	require.NoError(t, run(t, stock.DeleteFile(file)))
	assert.NoFileExists(t, file)

	require.NoError(t, run(t, stock.DeleteFile(file)), "missing file")
}

func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("contents"), 0o600))

	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, run(t, stock.CopyFile(src, dst)))
	assert.FileExists(t, dst)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))

	subDir := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(subDir, 0o755))
	require.NoError(t, run(t, stock.CopyFile(src, subDir)))
	assert.FileExists(t, filepath.Join(subDir, "src.txt"))

	require.Error(t, run(t, stock.CopyFile(filepath.Join(dir, "missing"), dst)))
}

func TestTouchFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")

	require.NoError(t, run(t, stock.TouchFile(file)))
	assert.FileExists(t, file)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(file, old, old))
	require.NoError(t, os.WriteFile(file, []byte("kept"), 0o644))
	require.NoError(t, os.Chtimes(file, old, old))

	require.NoError(t, run(t, stock.TouchFile(file)))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(old))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestCallSubprocess(t *testing.T) {
	t.Parallel()

	a := stock.CallSubprocess("sh", "-c", "echo out; echo err >&2")

	rep, err := runner.Execute(t.Context(), a)
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\n", string(rep.GetStatus(a).Output))

	failing := stock.CallSubprocess("sh", "-c", "exit 3")
	err = run(t, failing)

	var cmdErr *stock.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.ExitCode)
}

func TestCallCommandLine(t *testing.T) {
	t.Parallel()

	a, err := stock.CallCommandLine(`echo "hello world"  again`)
	require.NoError(t, err)
	assert.Equal(t, `echo "hello world"  again`, a.Label())

	rep, err := runner.Execute(t.Context(), a)
	require.NoError(t, err)
	assert.Equal(t, "hello world again\n", string(rep.GetStatus(a).Output))

	_, err = stock.CallCommandLine("   ")
	require.Error(t, err)

	_, err = stock.CallCommandLine(`echo "unterminated`)
	require.Error(t, err)
}

func TestSleepStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	a := stock.Sleep(time.Hour)

	rep, err := runner.Execute(ctx, a)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, action.Failed, rep.GetStatus(a).Status)
}

func TestNullGroupsDependencies(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	group := stock.Null()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, group.AddDependency(stock.TouchFile(filepath.Join(dir, name))))
	}

	assert.Equal(t, []string{
		"touch " + filepath.Join(dir, "a"),
		"touch " + filepath.Join(dir, "b"),
		"touch " + filepath.Join(dir, "c"),
	}, action.Preview(group))

	rep, err := runner.Execute(t.Context(), group)
	require.NoError(t, err)
	assert.True(t, rep.IsSuccess())
	assert.Equal(t, 4, rep.Len())
}

func TestStockActionsInWorkerProcesses(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	file := filepath.Join(dir, "file")

	mkdir := stock.CreateDirectory(dir)
	touch := stock.TouchFile(file)
	require.NoError(t, touch.AddDependency(mkdir))

	echo := stock.CallSubprocess("echo", "done")
	require.NoError(t, echo.AddDependency(touch))

	rep, err := runner.Execute(t.Context(), echo, runner.WithIsolation(options.ProcessIsolation))
	require.NoError(t, err)
	assert.FileExists(t, file)
	assert.Equal(t, "done\n", string(rep.GetStatus(echo).Output))

	err = run(t, stock.CreateDirectory(file), runner.WithIsolation(options.ProcessIsolation))

	var notDir *stock.PathIsNotDirectoryError
	require.ErrorAs(t, err, &notDir)
}
