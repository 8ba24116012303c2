// Package probe performs liveness handshakes against MCP servers over stdio.
//
// A probe spawns the server process the same way the desktop application
// would, runs the minimal MCP session (initialize, the initialized
// notification, then tools/list) and records whether a result came back
// before the deadline. Servers are spawned directly, never through a
// shell, and each probe owns its process: whatever happens, the child is
// terminated before Probe returns.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// ProtocolVersion is the MCP protocol revision announced during
	// initialize.
	ProtocolVersion = "2024-11-05"

	// DefaultTimeout bounds a single handshake from spawn to verdict.
	DefaultTimeout = 10 * time.Second

	initializeID = 1
	toolsListID  = 2

	// maxLineSize caps a single stdout line. tools/list replies carrying
	// large input schemas routinely cross the default 64K scanner limit.
	maxLineSize = 1024 * 1024

	maxStderrBytes = 4096
)

// Target identifies one server to probe.
type Target struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// Result records the outcome of a single probe.
type Result struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	DurationMS int64  `json:"duration_ms"`
	// ExitCode is -1 when the server never started or had to be killed.
	ExitCode  int    `json:"exit_code"`
	TimedOut  bool   `json:"timed_out"`
	ToolCount int    `json:"tool_count"`
	Error     string `json:"error,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
}

// Prober runs handshakes with a fixed deadline and client identity.
type Prober struct {
	timeout       time.Duration
	clientName    string
	clientVersion string
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout overrides the handshake deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClientInfo sets the name and version announced during initialize.
func WithClientInfo(name, version string) Option {
	return func(p *Prober) {
		if name != "" {
			p.clientName = name
		}
		if version != "" {
			p.clientVersion = version
		}
	}
}

// NewProber creates a Prober with the given options.
func NewProber(opts ...Option) *Prober {
	p := &Prober{
		timeout:       DefaultTimeout,
		clientName:    "restack",
		clientVersion: "dev",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs the handshake against a single target. Failures are reported
// in the Result rather than as an error: a server that cannot answer
// tools/list is a finding, not a reason to stop the caller.
func (p *Prober) Probe(ctx context.Context, target Target) (res Result) {
	res = Result{Name: target.Name, ExitCode: -1}
	start := time.Now()
	defer func() { res.DurationMS = time.Since(start).Milliseconds() }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, target.Command, target.Args...)
	if len(target.Env) > 0 {
		env := os.Environ()
		for k, v := range target.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	// A grandchild inheriting the pipes must not pin Wait after the kill.
	cmd.WaitDelay = 5 * time.Second

	stdin, err := cmd.StdinPipe()
	if err != nil {
		res.Error = "creating stdin pipe: " + err.Error()
		return res
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.Error = "creating stdout pipe: " + err.Error()
		return res
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		res.Error = "creating stderr pipe: " + err.Error()
		return res
	}

	if err := cmd.Start(); err != nil {
		res.Error = "starting server: " + err.Error()
		return res
	}

	var (
		initFailure *rpcError
		listResp    *response
		writeErr    error
		stderrTail  []byte
	)

	var g errgroup.Group
	g.Go(func() error {
		// Reap the server once the verdict is in: well-behaved servers
		// exit on stdin EOF, the rest get killed by the context.
		defer cancel()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var resp response
			if err := json.Unmarshal(line, &resp); err != nil || resp.ID == nil {
				// Server-initiated notifications and stray log lines
				// share the pipe; only numbered replies matter here.
				continue
			}
			switch *resp.ID {
			case initializeID:
				if resp.Error != nil {
					initFailure = resp.Error
					return nil
				}
			case toolsListID:
				r := resp
				listResp = &r
				return nil
			}
		}
		return scanner.Err()
	})
	g.Go(func() error {
		tail, err := readTail(stderr, maxStderrBytes)
		stderrTail = tail
		return err
	})

	// All three handshake messages go out back to back; MCP servers must
	// tolerate pipelined requests. Closing stdin afterwards tells the
	// server the session is over.
	enc := json.NewEncoder(stdin)
	for _, msg := range []request{
		newRequest(initializeID, "initialize", initializeParams{
			ProtocolVersion: ProtocolVersion,
			ClientInfo:      clientInfo{Name: p.clientName, Version: p.clientVersion},
		}),
		newNotification("notifications/initialized"),
		newRequest(toolsListID, "tools/list", nil),
	} {
		if err := enc.Encode(msg); err != nil {
			writeErr = err
			break
		}
	}
	stdin.Close()

	pumpErr := g.Wait()
	waitErr := cmd.Wait()

	res.Stderr = strings.TrimSpace(string(stderrTail))
	if waitErr == nil {
		res.ExitCode = 0
	} else {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
	}

	if listResp != nil && listResp.Error == nil {
		res.OK = true
		res.ToolCount = countTools(listResp.Result)
		return res
	}

	res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)

	switch {
	case res.TimedOut:
		res.Error = fmt.Sprintf("no tools/list response within %s", p.timeout)
	case listResp != nil:
		res.Error = fmt.Sprintf("tools/list failed: %s (code %d)", listResp.Error.Message, listResp.Error.Code)
	case initFailure != nil:
		res.Error = fmt.Sprintf("initialize failed: %s (code %d)", initFailure.Message, initFailure.Code)
	case writeErr != nil:
		res.Error = "writing request: " + writeErr.Error()
	case pumpErr != nil:
		res.Error = "reading response: " + pumpErr.Error()
	default:
		res.Error = fmt.Sprintf("server exited before answering tools/list (exit code %d)", res.ExitCode)
	}
	return res
}

func countTools(result json.RawMessage) int {
	var body struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(result, &body); err != nil {
		return 0
	}
	return len(body.Tools)
}

// readTail drains r, keeping only the final max bytes. Stderr from a
// crashing server ends with the interesting part.
func readTail(r io.Reader, max int) ([]byte, error) {
	var tail []byte
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			tail = append(tail, chunk[:n]...)
			if len(tail) > max {
				tail = append([]byte(nil), tail[len(tail)-max:]...)
			}
		}
		if errors.Is(err, io.EOF) {
			return tail, nil
		}
		if err != nil {
			return tail, err
		}
	}
}
