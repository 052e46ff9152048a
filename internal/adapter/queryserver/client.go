package queryserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"qlmodel/internal/domain"
	"qlmodel/internal/port"
)

// Request method names of the evaluation backend.
const (
	methodVersion     = "evaluation/version"
	methodCompile     = "compilation/compileQuery"
	methodRun         = "evaluation/runQuery"
	methodRegister    = "evaluation/registerDatabases"
	methodDeregister  = "evaluation/deregisterDatabases"
	methodProgress    = "ql/progressUpdated"
	methodShutdown    = "evaluation/shutdown"
	defaultWorkingSet = "default"
)

// Options configures the connection to the evaluation backend.
type Options struct {
	Path        string   // server executable
	Args        []string // extra arguments
	TimeoutSecs int      // per-request evaluation timeout
}

// Client drives one evaluation backend over a bidirectional
// request/response channel. One outstanding request per call; all methods
// are safe for concurrent use.
type Client struct {
	proto *protocol
	cmd   *exec.Cmd
	stdin io.WriteCloser
	caps  domain.Capabilities

	timeoutSecs int

	mu         sync.Mutex
	registered map[string]bool

	nextProgressID int64
	sinks          sync.Map // progress id -> port.ProgressSink
}

var _ port.QueryServer = (*Client)(nil)

// Start launches the backend process and performs the version handshake.
func Start(ctx context.Context, opts Options) (*Client, error) {
	cmd := exec.Command(opts.Path, opts.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start query server: %w", err)
	}

	c, err := Connect(ctx, stdout, stdin, opts.TimeoutSecs)
	if err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	c.cmd = cmd
	c.stdin = stdin
	return c, nil
}

// Connect wires a client over an existing reader/writer pair (the server's
// stdout and stdin) and performs the version handshake. Used directly by
// tests and by hosts that manage the process themselves.
func Connect(ctx context.Context, r io.Reader, w io.Writer, timeoutSecs int) (*Client, error) {
	c := &Client{
		timeoutSecs: timeoutSecs,
		registered:  make(map[string]bool),
	}
	c.proto = newProtocol(r, w, c.handleNotification)
	go c.proto.readLoop()

	var version struct {
		Version string `json:"version"`
	}
	if err := c.proto.call(ctx, methodVersion, nil, &version); err != nil {
		c.proto.close()
		return nil, fmt.Errorf("version handshake: %w", err)
	}
	c.caps = resolveCapabilities(version.Version)
	return c, nil
}

// Capabilities reports the connected backend's feature set.
func (c *Client) Capabilities() domain.Capabilities {
	return c.caps
}

type compileParams struct {
	Body       domain.CompileRequest `json:"body"`
	ProgressID int64                 `json:"progressId"`
}

type compileResult struct {
	Messages []domain.CompileMessage `json:"messages"`
}

// Compile sends one compile request and returns the full ordered message
// list. Compile errors come back in the list; only transport failures
// produce a non-nil error. Compiling from a query pack requires the
// backend's query-pack capability and fails before sending otherwise.
func (c *Client) Compile(ctx context.Context, req domain.CompileRequest, progress port.ProgressSink) ([]domain.CompileMessage, error) {
	if err := req.Target.Validate(); err != nil {
		return nil, err
	}
	if req.Target.QueryPack != nil && !c.caps.SupportsQueryPacks {
		return nil, fmt.Errorf("compile from query pack (server %s): %w", c.caps.Version, ErrCapabilityMissing)
	}
	if req.ExtraOptions.TimeoutSecs == 0 {
		req.ExtraOptions.TimeoutSecs = c.timeoutSecs
	}

	id, done := c.registerSink(progress)
	defer done()

	var result compileResult
	if err := c.proto.call(ctx, methodCompile, compileParams{Body: req, ProgressID: id}, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

type runParams struct {
	Body       domain.RunRequest `json:"body"`
	ProgressID int64             `json:"progressId"`
}

type runResult struct {
	ResultType int    `json:"resultType"`
	Message    string `json:"message,omitempty"`
}

// Run evaluates a compiled query, writing raw results to the request's
// output path.
func (c *Client) Run(ctx context.Context, req domain.RunRequest, progress port.ProgressSink) error {
	if req.TimeoutSecs == 0 {
		req.TimeoutSecs = c.timeoutSecs
	}

	id, done := c.registerSink(progress)
	defer done()

	var result runResult
	if err := c.proto.call(ctx, methodRun, runParams{Body: req, ProgressID: id}, &result); err != nil {
		return err
	}
	if result.ResultType != 0 {
		return fmt.Errorf("evaluation failed: %s", result.Message)
	}
	return nil
}

type databaseRegistration struct {
	DBDir      string `json:"dbDir"`
	WorkingSet string `json:"workingSet"`
}

type registrationParams struct {
	Databases []databaseRegistration `json:"databases"`
}

// RegisterDatabase registers a database's dataset with the backend. A
// no-op when the backend does not support registration.
func (c *Client) RegisterDatabase(ctx context.Context, db domain.DatabaseItem) error {
	if !c.caps.SupportsDatabaseRegistration {
		return nil
	}

	params := registrationParams{
		Databases: []databaseRegistration{{DBDir: db.DatasetDir, WorkingSet: defaultWorkingSet}},
	}
	if err := c.proto.call(ctx, methodRegister, params, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.registered[db.DatasetDir] = true
	c.mu.Unlock()
	return nil
}

// DeregisterDatabase removes a registration made earlier in this session.
// A no-op when unsupported or when the database was never registered.
func (c *Client) DeregisterDatabase(ctx context.Context, db domain.DatabaseItem) error {
	if !c.caps.SupportsDatabaseRegistration {
		return nil
	}

	c.mu.Lock()
	known := c.registered[db.DatasetDir]
	c.mu.Unlock()
	if !known {
		return nil
	}

	params := registrationParams{
		Databases: []databaseRegistration{{DBDir: db.DatasetDir, WorkingSet: defaultWorkingSet}},
	}
	if err := c.proto.call(ctx, methodDeregister, params, nil); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.registered, db.DatasetDir)
	c.mu.Unlock()
	return nil
}

// Stop shuts the backend down: a best-effort shutdown notification, then
// the channel and process are torn down.
func (c *Client) Stop() error {
	c.proto.notify(methodShutdown, nil)
	c.proto.close()
	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.cmd != nil {
		c.cmd.Process.Kill()
		return c.cmd.Wait()
	}
	return nil
}

type progressPayload struct {
	ID      int64  `json:"id"`
	Step    int    `json:"step"`
	MaxStep int    `json:"maxStep"`
	Message string `json:"message"`
}

func (c *Client) handleNotification(method string, params json.RawMessage) {
	if method != methodProgress {
		return
	}
	var p progressPayload
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	if sink, ok := c.sinks.Load(p.ID); ok {
		sink.(port.ProgressSink).Progress(p.Step, p.MaxStep, p.Message)
	}
}

// registerSink exposes a progress sink to the notification handler for the
// duration of one request.
func (c *Client) registerSink(progress port.ProgressSink) (int64, func()) {
	if progress == nil {
		progress = port.NopProgress
	}
	id := atomic.AddInt64(&c.nextProgressID, 1)
	c.sinks.Store(id, progress)
	return id, func() { c.sinks.Delete(id) }
}
