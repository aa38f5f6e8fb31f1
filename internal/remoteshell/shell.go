// Package remoteshell implements per-node SSH command execution, returning
// {stdout, stderr, exitCode} under a deadline. Connections are pooled per
// node and reused rather than dialed fresh on every call.
package remoteshell

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// NodeAddr maps a cluster node name to its SSH address ("host:22").
type NodeAddr struct {
	Node string
	Addr string
}

// Config configures the pool's SSH auth.
type Config struct {
	User       string
	PrivateKey []byte
	Nodes      []NodeAddr
	Timeout    time.Duration
}

// Pool holds one reused *ssh.Client per node.
type Pool struct {
	cfg     Config
	signer  ssh.Signer
	addrs   map[string]string
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewPool parses the private key and builds the node→address map.
func NewPool(cfg Config) (*Pool, error) {
	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("remoteshell: parse private key: %w", err)
	}
	addrs := make(map[string]string, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		addrs[n.Node] = n.Addr
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Pool{
		cfg:     cfg,
		signer:  signer,
		addrs:   addrs,
		timeout: timeout,
		clients: make(map[string]*ssh.Client),
	}, nil
}

// Result is the outcome of a remote command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes command on node via the pooled SSH connection, honoring
// ctx's cancellation and the pool's configured timeout.
func (p *Pool) Run(ctx context.Context, node, command string) (Result, error) {
	client, err := p.clientFor(node)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	session, err := client.NewSession()
	if err != nil {
		p.evict(node)
		return Result{}, fmt.Errorf("remoteshell: open session for %s: %w", node, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-runCtx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return Result{}, fmt.Errorf("remoteshell: command on %s timed out: %w", node, runCtx.Err())
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				exitCode = -1
			}
		}
		return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
	}
}

func (p *Pool) clientFor(node string) (*ssh.Client, error) {
	p.mu.Lock()
	if c, ok := p.clients[node]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	addr, ok := p.addrs[node]
	if !ok {
		return nil, fmt.Errorf("remoteshell: unknown node %q", node)
	}

	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            p.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(p.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // homelab LAN; host keys are not verified
		Timeout:         p.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("remoteshell: dial %s (%s): %w", node, addr, err)
	}

	p.mu.Lock()
	p.clients[node] = client
	p.mu.Unlock()
	return client, nil
}

func (p *Pool) evict(node string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[node]; ok {
		_ = c.Close()
		delete(p.clients, node)
	}
}

// Close releases every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for node, c := range p.clients {
		_ = c.Close()
		delete(p.clients, node)
	}
	return nil
}
