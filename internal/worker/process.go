package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/wire"
	"github.com/gruntwork-io/actiontree/pkg/log"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"golang.org/x/sync/errgroup"
)

// ProcessOption configures a ProcessPool.
type ProcessOption func(*ProcessPool)

// WithCommand overrides how worker processes are started. By default the current executable is started again.
func WithCommand(command func() (*exec.Cmd, error)) ProcessOption {
	return func(wp *ProcessPool) {
		wp.command = command
	}
}

// WithLogger sets the logger receiving the logs of the pool and of its worker processes.
func WithLogger(logger log.Logger) ProcessOption {
	return func(wp *ProcessPool) {
		wp.logger = logger
	}
}

type process struct {
	client *plugin.Client
	rpc    *RPCClient
	id     int
}

// ProcessPool runs jobs in worker processes. Processes are started on demand, up to maxWorkers,
// and reused for subsequent jobs. The host program must call Serve when IsWorkerProcess is true.
type ProcessPool struct {
	logger     log.Logger
	logWriter  *io.PipeWriter
	command    func() (*exec.Cmd, error)
	slots      chan struct{}
	idle       []*process
	processes  []*process
	wg         sync.WaitGroup
	mu         sync.Mutex
	spawned    int
	isStopping atomic.Bool
}

// NewProcessPool creates a pool running at most maxWorkers processes.
func NewProcessPool(maxWorkers int, opts ...ProcessOption) *ProcessPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	wp := &ProcessPool{
		logger:  log.Default(),
		command: defaultCommand,
		slots:   make(chan struct{}, maxWorkers),
	}

	for _, opt := range opts {
		opt(wp)
	}

	return wp
}

// Prepare implements Pool. It encodes the job and fails with a *wire.SerializationError if the executor cannot cross the boundary.
func (wp *ProcessPool) Prepare(job *Job) error {
	payload, err := wire.EncodeJob(job.Label, job.Executor, job.Dependencies)
	if err != nil {
		return err
	}

	job.payload = payload

	return nil
}

// Submit implements Pool.
// The context is not forwarded: executors in worker processes run to completion.
func (wp *ProcessPool) Submit(_ context.Context, job *Job, events chan<- Event) {
	wp.wg.Add(1)

	go func() {
		defer wp.wg.Done()

		done := func(val any, err error) {
			events <- Event{JobID: job.ID, Kind: EventDone, Value: val, Err: err}
		}

		if wp.isStopping.Load() {
			done(nil, errors.Errorf("action %q: pool is stopping", job.Label))
			return
		}

		if job.payload == nil {
			if err := wp.Prepare(job); err != nil {
				done(nil, err)
				return
			}
		}

		wp.slots <- struct{}{}

		defer func() { <-wp.slots }()

		proc, err := wp.acquire()
		if err != nil {
			done(nil, err)
			return
		}

		events <- Event{JobID: job.ID, Kind: EventStarted}

		reply, err := proc.rpc.Execute(job.payload, func(p []byte) {
			events <- Event{JobID: job.ID, Kind: EventOutput, Output: p}
		})
		if err != nil {
			wp.logger.WithField(log.FieldKeyWorker, proc.id).WithError(err).Debugf("Worker process failed while running %q", job.Label)
			wp.discard(proc)
			done(nil, errors.Errorf("action %q: worker process failed: %w", job.Label, err))

			return
		}

		wp.release(proc)

		if reply.Failure != "" {
			done(nil, &wire.SerializationError{Label: job.Label, Subject: reply.Subject, Err: errors.New(reply.Failure)})
			return
		}

		val, execErr, err := wire.DecodeResult(job.Label, reply.Result)
		if err != nil {
			done(nil, err)
			return
		}

		done(val, execErr)
	}()
}

// Close implements Pool. It waits for submitted jobs, then stops every worker process.
func (wp *ProcessPool) Close() error {
	wp.isStopping.Store(true)
	wp.wg.Wait()

	wp.mu.Lock()
	processes := wp.processes
	wp.processes, wp.idle = nil, nil
	wp.mu.Unlock()

	g := new(errgroup.Group)

	for _, proc := range processes {
		g.Go(func() error {
			proc.client.Kill()
			return nil
		})
	}

	err := g.Wait()

	if wp.logWriter != nil {
		_ = wp.logWriter.Close()
	}

	return err
}

func (wp *ProcessPool) acquire() (*process, error) {
	wp.mu.Lock()

	for len(wp.idle) > 0 {
		proc := wp.idle[len(wp.idle)-1]
		wp.idle = wp.idle[:len(wp.idle)-1]

		if !proc.client.Exited() {
			wp.mu.Unlock()
			return proc, nil
		}

		wp.removeLocked(proc)
	}

	wp.spawned++
	id := wp.spawned

	if wp.logWriter == nil {
		wp.logWriter = wp.logger.WriterLevel(log.DebugLevel)
	}

	wp.mu.Unlock()

	proc, err := wp.spawn(id)
	if err != nil {
		return nil, err
	}

	wp.mu.Lock()
	wp.processes = append(wp.processes, proc)
	wp.mu.Unlock()

	return proc, nil
}

func (wp *ProcessPool) spawn(id int) (*process, error) {
	cmd, err := wp.command()
	if err != nil {
		return nil, err
	}

	level := wp.logger.Level().String()
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", workerLogLevelEnv, level))

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   fmt.Sprintf("worker-%d", id),
		Level:  hclog.LevelFromString(level),
		Output: wp.logWriter,
	})

	client := plugin.NewClient(&plugin.ClientConfig{
		Logger:           logger,
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              cmd,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, errors.Errorf("starting worker process: %w", err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, errors.Errorf("dispensing worker plugin: %w", err)
	}

	rpc, ok := raw.(*RPCClient)
	if !ok {
		client.Kill()
		return nil, errors.Errorf("unexpected worker plugin type %T", raw)
	}

	wp.logger.WithField(log.FieldKeyWorker, id).Debugf("Started worker process")

	return &process{id: id, client: client, rpc: rpc}, nil
}

func (wp *ProcessPool) release(proc *process) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	wp.idle = append(wp.idle, proc)
}

func (wp *ProcessPool) discard(proc *process) {
	proc.client.Kill()

	wp.mu.Lock()
	defer wp.mu.Unlock()

	wp.removeLocked(proc)
}

func (wp *ProcessPool) removeLocked(proc *process) {
	for i, p := range wp.processes {
		if p == proc {
			wp.processes = append(wp.processes[:i], wp.processes[i+1:]...)
			return
		}
	}
}

func defaultCommand() (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.New(err)
	}

	return exec.Command(exe), nil
}
