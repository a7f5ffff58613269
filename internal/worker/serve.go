package worker

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const workerLogLevelEnv = "ACTIONTREE_WORKER_LOG_LEVEL"

// IsWorkerProcess reports whether the current process was started by a ProcessPool.
func IsWorkerProcess() bool {
	return os.Getenv(Handshake.MagicCookieKey) == Handshake.MagicCookieValue
}

// Serve serves jobs until the scheduler closes the pool.
func Serve() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "actiontree-worker",
		Level:      hclog.LevelFromString(os.Getenv(workerLogLevelEnv)),
		Output:     os.Stderr,
		JSONFormat: true,
	})

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         plugin.PluginSet{PluginName: &ExecutorPlugin{Logger: logger}},
		Logger:          logger,
	})
}
