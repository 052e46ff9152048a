package queryserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const jsonrpcVersion = "2.0"

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("query server error %d: %s", e.Code, e.Message)
}

// notifyFunc receives server-initiated notifications from the read loop.
type notifyFunc func(method string, params json.RawMessage)

// protocol frames JSON-RPC messages with Content-Length headers over the
// backend's stdio pipes and correlates responses with pending requests.
// Safe for concurrent callers; readLoop must run in a single goroutine.
type protocol struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	nextID    int64
	pending   map[int64]chan rpcResponse
	pendingMu sync.Mutex

	onNotify notifyFunc
	closed   int32 // atomic
}

func newProtocol(r io.Reader, w io.Writer, onNotify notifyFunc) *protocol {
	return &protocol{
		reader:   bufio.NewReader(r),
		writer:   w,
		pending:  make(map[int64]chan rpcResponse),
		onNotify: onNotify,
	}
}

// call sends one request and blocks until the response arrives or ctx is
// cancelled. A non-nil result receives the unmarshalled response body.
func (p *protocol) call(ctx context.Context, method string, params, result interface{}) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return ErrServerClosed
	}

	id := atomic.AddInt64(&p.nextID, 1)
	respCh := make(chan rpcResponse, 1)

	p.pendingMu.Lock()
	p.pending[id] = respCh
	p.pendingMu.Unlock()
	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	req := rpcRequest{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}
	if err := p.writeMessage(req); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case resp := <-respCh:
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s response: %w", method, err)
			}
		}
		return nil
	}
}

// notify sends a request with no ID; no response is expected.
func (p *protocol) notify(method string, params interface{}) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return ErrServerClosed
	}
	return p.writeMessage(rpcRequest{JSONRPC: jsonrpcVersion, Method: method, Params: params})
}

func (p *protocol) writeMessage(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := fmt.Fprintf(p.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := p.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// readLoop reads framed messages until the peer closes or fails. Responses
// resolve pending calls; everything else goes to the notification handler.
func (p *protocol) readLoop() error {
	for {
		msg, err := p.readMessage()
		if err != nil {
			if atomic.LoadInt32(&p.closed) == 1 || err == io.EOF {
				p.close()
				return nil
			}
			p.close()
			return fmt.Errorf("read: %w", err)
		}
		p.dispatch(msg)
	}
}

func (p *protocol) readMessage() (json.RawMessage, error) {
	contentLength := 0
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			v := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("bad Content-Length %q: %w", v, err)
			}
		}
	}
	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *protocol) dispatch(msg json.RawMessage) {
	var resp rpcResponse
	if err := json.Unmarshal(msg, &resp); err == nil && resp.ID != 0 && (resp.Result != nil || resp.Error != nil) {
		p.pendingMu.Lock()
		ch, ok := p.pending[resp.ID]
		p.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
		return
	}

	var note struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(msg, &note); err == nil && note.Method != "" && p.onNotify != nil {
		p.onNotify(note.Method, note.Params)
	}
}

// close fails all pending calls and rejects further sends.
func (p *protocol) close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	p.pendingMu.Lock()
	for id, ch := range p.pending {
		select {
		case ch <- rpcResponse{
			JSONRPC: jsonrpcVersion,
			ID:      id,
			Error:   &rpcError{Code: -32099, Message: "connection closed"},
		}:
		default:
		}
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
}
