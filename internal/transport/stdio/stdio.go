// Package stdio implements the client-side stdio Transport: the server
// runs as a child process, and JSON-RPC messages are exchanged as
// newline-delimited JSON over its stdin/stdout. Spawning and the
// line-framing discipline are grounded on the server-side stdio
// transport this package replaces the role of; here the client writes to
// the child's stdin and reads from its stdout instead of the reverse.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mcpgo/mcpgo/internal/logging"
	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/transport"
)

// Transport spawns Command with Args/Env, feeding it requests on stdin
// and reading framed responses/notifications off its stdout. Stderr is
// left connected to the parent's stderr for diagnostics: the wire
// protocol only ever travels over stdout.
type Transport struct {
	Command string
	Args    []string
	Env     []string
	Logger  *logging.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	dispatcher transport.Dispatcher
	closed     bool
}

// New returns a Transport ready to Connect.
func New(command string, args, env []string, logger *logging.Logger) *Transport {
	return &Transport{Command: command, Args: args, Env: env, Logger: logger}
}

func (t *Transport) Shape() transport.Shape { return transport.ShapeStream }

func (t *Transport) SetDispatcher(d transport.Dispatcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatcher = d
}

// Connect starts the child process and begins the background reader. It
// is not safe to call twice.
func (t *Transport) Connect(ctx context.Context) error {
	cmd := exec.Command(t.Command, t.Args...)
	cmd.Stderr = os.Stderr
	if len(t.Env) > 0 {
		cmd.Env = append(cmd.Environ(), t.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return protocol.NewConnectionError(t.Command, fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return protocol.NewConnectionError(t.Command, fmt.Errorf("stdout pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return protocol.NewConnectionError(t.Command, fmt.Errorf("start: %w", err))
	}

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.stdout = bufio.NewReader(stdout)
	t.mu.Unlock()

	go t.readLoop()
	return nil
}

func (t *Transport) readLoop() {
	for {
		t.mu.Lock()
		reader := t.stdout
		t.mu.Unlock()
		if reader == nil {
			return
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && t.Logger != nil {
				t.Logger.Warnf("stdio transport: read error: %v", err)
			}
			return
		}
		if len(line) == 0 {
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			if t.Logger != nil {
				t.Logger.Warnf("stdio transport: dropping unparseable line: %v", err)
			}
			continue
		}

		t.mu.Lock()
		d := t.dispatcher
		t.mu.Unlock()
		if d != nil {
			d.Dispatch(&msg)
		}
	}
}

// Deliver writes msg followed by a newline to the child's stdin. The
// response, if any, arrives later through the Dispatcher.
func (t *Transport) Deliver(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, protocol.NewTransportError(t.Command, err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	stdin := t.stdin
	t.mu.Unlock()
	if stdin == nil {
		return nil, protocol.NewConnectionError(t.Command, fmt.Errorf("not connected"))
	}

	if _, err := stdin.Write(data); err != nil {
		return nil, protocol.NewTransportError(t.Command, err)
	}
	return nil, nil
}

// Close closes stdin (signaling EOF to the child), waits briefly for
// graceful exit, and kills the process if it doesn't. Safe to call more
// than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cmd := t.cmd
	stdin := t.stdin
	t.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(time.Second):
		_ = cmd.Process.Kill()
		<-done
		return nil
	}
}
