package runner

import (
	"os"

	"github.com/gruntwork-io/actiontree/internal/wire"
	"github.com/gruntwork-io/actiontree/internal/worker"
)

// Register makes the concrete type of prototype usable with process isolation.
// It must be called in the same way by the host program and its worker processes,
// typically from an init function. Executors, return values and error types are registered alike.
func Register(prototype any) {
	wire.Register(prototype)
}

// InitWorker turns the current process into a worker when it was started by a process pool.
// It must be called first thing in main (and in TestMain) of programs using process isolation.
// In a worker process it serves actions and never returns.
func InitWorker() {
	if !worker.IsWorkerProcess() {
		return
	}

	worker.Serve()
	os.Exit(0)
}
