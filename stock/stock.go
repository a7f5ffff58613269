// Package stock provides ready-made actions for common tasks: manipulating the filesystem,
// calling external programs, waiting. They are ordinary executors and can run in worker processes.
package stock

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/gruntwork-io/actiontree/action"
	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/runner"
)

const defaultDirPerm = 0o755

func init() {
	runner.Register(&Nothing{})
	runner.Register(&SleepFor{})
	runner.Register(&MakeDirectory{})
	runner.Register(&RemoveFile{})
	runner.Register(&Copy{})
	runner.Register(&Touch{})
	runner.Register(&Command{})
	runner.Register(&PathIsNotDirectoryError{})
	runner.Register(&CommandError{})
}

// Null returns an unlabeled action doing nothing. It is useful to group several dependencies.
func Null() *action.Action {
	return action.New("", &Nothing{})
}

// Sleep returns an action waiting for d, or until its context is done.
func Sleep(d time.Duration) *action.Action {
	return action.New(fmt.Sprintf("sleep %s", d), &SleepFor{Duration: d})
}

// CreateDirectory returns an action creating path and its missing parents. It succeeds if the directory exists.
func CreateDirectory(path string) *action.Action {
	return action.New("mkdir "+path, &MakeDirectory{Path: path})
}

// DeleteFile returns an action deleting the file at path. It succeeds if the file does not exist.
func DeleteFile(path string) *action.Action {
	return action.New("rm "+path, &RemoveFile{Path: path})
}

// CopyFile returns an action copying src to dst. If dst is a directory, the file is copied into it.
func CopyFile(src, dst string) *action.Action {
	return action.New(fmt.Sprintf("cp %s %s", src, dst), &Copy{Source: src, Destination: dst})
}

// TouchFile returns an action updating the modification time of path, creating the file empty if needed.
// The parent directory must exist.
func TouchFile(path string) *action.Action {
	return action.New("touch "+path, &Touch{Path: path})
}

// CallSubprocess returns an action running name with args. Its stdout and stderr become the output of the action.
func CallSubprocess(name string, args ...string) *action.Action {
	return action.New(strings.Join(append([]string{name}, args...), " "), &Command{Name: name, Args: args})
}

// CallCommandLine returns an action running the command line, split with shell quoting rules.
// No shell is involved: pipes, redirections and variables are not interpreted.
func CallCommandLine(line string) (*action.Action, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, errors.Errorf("parsing command line %q: %w", line, err)
	}

	if len(args) == 0 {
		return nil, errors.Errorf("empty command line %q", line)
	}

	return action.New(line, &Command{Name: args[0], Args: args[1:]}), nil
}

// Nothing is the executor of Null.
type Nothing struct{}

func (*Nothing) Execute(context.Context) (any, error) {
	return nil, nil
}

// SleepFor is the executor of Sleep.
type SleepFor struct {
	Duration time.Duration
}

func (s *SleepFor) Execute(ctx context.Context) (any, error) {
	timer := time.NewTimer(s.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, errors.New(ctx.Err())
	}
}

// MakeDirectory is the executor of CreateDirectory.
type MakeDirectory struct {
	Path string
}

func (m *MakeDirectory) Execute(context.Context) (any, error) {
	if info, err := os.Stat(m.Path); err == nil && !info.IsDir() {
		return nil, errors.New(&PathIsNotDirectoryError{Path: m.Path})
	}

	if err := os.MkdirAll(m.Path, defaultDirPerm); err != nil {
		return nil, errors.New(err)
	}

	return nil, nil
}

// RemoveFile is the executor of DeleteFile.
type RemoveFile struct {
	Path string
}

func (r *RemoveFile) Execute(context.Context) (any, error) {
	if err := os.Remove(r.Path); err != nil && !os.IsNotExist(err) {
		return nil, errors.New(err)
	}

	return nil, nil
}

// Copy is the executor of CopyFile.
type Copy struct {
	Source      string
	Destination string
}

func (c *Copy) Execute(context.Context) (any, error) {
	info, err := os.Stat(c.Source)
	if err != nil {
		return nil, errors.New(err)
	}

	dst := c.Destination
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.IsDir() {
		dst = filepath.Join(dst, filepath.Base(c.Source))
	}

	src, err := os.Open(c.Source)
	if err != nil {
		return nil, errors.New(err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return nil, errors.New(err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return nil, errors.New(err)
	}

	return nil, errors.New(out.Close())
}

// Touch is the executor of TouchFile.
type Touch struct {
	Path string
}

func (t *Touch) Execute(context.Context) (any, error) {
	file, err := os.OpenFile(t.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.New(err)
	}

	if err := file.Close(); err != nil {
		return nil, errors.New(err)
	}

	now := time.Now()

	return nil, errors.New(os.Chtimes(t.Path, now, now))
}

// Command is the executor of CallSubprocess.
type Command struct {
	Name string
	Dir  string
	Args []string
	Env  []string
}

func (c *Command) Execute(ctx context.Context) (any, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	out := action.Output(ctx)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		cmdErr := &CommandError{Command: strings.Join(cmd.Args, " "), Message: err.Error(), ExitCode: -1}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}

		return nil, errors.New(cmdErr)
	}

	return nil, nil
}
