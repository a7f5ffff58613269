package worker

import (
	"context"
	"io"
	"net/rpc"
	"os"

	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/gruntwork-io/actiontree/internal/util"
	"github.com/gruntwork-io/actiontree/internal/wire"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	// PluginName is the name the executor plugin is dispensed under.
	PluginName = "executor"

	protocolVersion   = 1
	workerCookieKey   = "ACTIONTREE_WORKER_COOKIE"
	workerCookieValue = "2b5c2b9e-6f0d-4c1c-9f6e-5b0f7f1c3a7d"
)

// Handshake is shared by the scheduler and its worker processes.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  protocolVersion,
	MagicCookieKey:   workerCookieKey,
	MagicCookieValue: workerCookieValue,
}

// PluginMap is the set of plugins the scheduler dispenses from worker processes.
var PluginMap = plugin.PluginSet{
	PluginName: &ExecutorPlugin{},
}

// ExecutorPlugin implements plugin.Plugin over net/rpc. Logger is used on the worker process side.
type ExecutorPlugin struct {
	Logger hclog.Logger
}

// Server implements plugin.Plugin.
func (p *ExecutorPlugin) Server(broker *plugin.MuxBroker) (any, error) {
	logger := p.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &RPCServer{broker: broker, logger: logger}, nil
}

// Client implements plugin.Plugin.
func (*ExecutorPlugin) Client(broker *plugin.MuxBroker, client *rpc.Client) (any, error) {
	return &RPCClient{broker: broker, client: client}, nil
}

// ExecuteArgs are the arguments of the Execute call.
type ExecuteArgs struct {
	Job      []byte
	OutputID uint32
}

// ExecuteReply is the reply of the Execute call. Failure is set when the job or its
// result could not cross the boundary, Subject tells which part failed.
type ExecuteReply struct {
	Result  []byte
	Failure string
	Subject string
}

// RPCClient is the scheduler side of a worker process.
type RPCClient struct {
	broker *plugin.MuxBroker
	client *rpc.Client
}

// Execute runs the encoded job in the worker process. onOutput is called with every
// chunk of output before Execute returns.
func (c *RPCClient) Execute(job []byte, onOutput func(p []byte)) (*ExecuteReply, error) {
	id := c.broker.NextId()
	go c.broker.AcceptAndServe(id, &OutputSink{onOutput: onOutput})

	reply := new(ExecuteReply)
	if err := c.client.Call("Plugin.Execute", ExecuteArgs{OutputID: id, Job: job}, reply); err != nil {
		return nil, errors.New(err)
	}

	return reply, nil
}

// OutputSink receives output chunks streamed by a worker process.
type OutputSink struct {
	onOutput func(p []byte)
}

// Chunk is called by the worker process for every chunk of output.
func (sink *OutputSink) Chunk(p []byte, n *int) error {
	sink.onOutput(p)
	*n = len(p)

	return nil
}

// RPCServer is the worker process side.
type RPCServer struct {
	broker *plugin.MuxBroker
	logger hclog.Logger
}

// Execute runs one job. The process stdout and stderr are captured for the duration of the job.
func (s *RPCServer) Execute(args ExecuteArgs, reply *ExecuteReply) error {
	conn, err := s.broker.Dial(args.OutputID)
	if err != nil {
		return errors.New(err)
	}

	sink := rpc.NewClient(conn)
	defer sink.Close() //nolint:errcheck

	job, executor, err := wire.DecodeJob(args.Job)
	if err != nil {
		reply.Failure = err.Error()
		reply.Subject = wire.SubjectExecutor

		return nil
	}

	out := util.NewChunkWriter(func(p []byte) {
		sendChunk(s.logger, job.Label, sink, p)
	})

	restore, err := captureStdio(out)
	if err != nil {
		return err
	}

	val, execErr := runExecutor(context.Background(), job.Label, executor, job.Dependencies, out)

	restore()

	_ = out.Close()

	data, err := wire.EncodeResult(job.Label, val, execErr)
	if err != nil {
		var serErr *wire.SerializationError
		if !errors.As(err, &serErr) {
			return err
		}

		reply.Failure = serErr.Err.Error()
		reply.Subject = serErr.Subject

		return nil
	}

	reply.Result = data

	return nil
}

type chunkCaller interface {
	Call(serviceMethod string, args any, reply any) error
}

// sendChunk streams p to the scheduler. Chunks that cannot be delivered are logged and dropped.
func sendChunk(logger hclog.Logger, label string, sink chunkCaller, p []byte) {
	var n int

	if err := sink.Call("Plugin.Chunk", p, &n); err != nil {
		logger.Warn("lost output chunk", "action", label, "bytes", len(p), "error", err)
	}
}

// captureStdio redirects os.Stdout and os.Stderr to w until the returned function is called.
// The returned function blocks until everything written so far was copied to w.
func captureStdio(w io.Writer) (func(), error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, errors.New(err)
	}

	stdout, stderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = writer, writer

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = io.Copy(w, reader)
	}()

	return func() {
		os.Stdout, os.Stderr = stdout, stderr

		_ = writer.Close()

		<-done

		_ = reader.Close()
	}, nil
}
