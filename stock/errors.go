package stock

import "fmt"

// PathIsNotDirectoryError is returned when a directory is expected but a file exists at the path.
type PathIsNotDirectoryError struct {
	Path string
}

func (err *PathIsNotDirectoryError) Error() string {
	return fmt.Sprintf("%s is not a directory", err.Path)
}

// CommandError is returned when a subprocess could not run or exited with a non-zero code.
type CommandError struct {
	Command  string
	Message  string
	ExitCode int
}

func (err *CommandError) Error() string {
	return fmt.Sprintf("command %q failed: %s", err.Command, err.Message)
}
