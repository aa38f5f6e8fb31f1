// Package email sends notification mail by delegating to a host that
// accepts a subject and HTML body via a remote shell invocation. Email
// failures are logged and swallowed by callers — they never fail a
// remediation.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/homelab/jarvis/internal/remoteshell"
)

// Sender runs a remote command and returns its result; satisfied by
// *remoteshell.Pool.
type Sender interface {
	Run(ctx context.Context, node, command string) (remoteshell.Result, error)
}

// Delegate sends mail by invoking a configured command on a configured
// node, e.g. "sendmail -t" reading a MIME document on stdin is not used
// here; instead the delegate host exposes a small mail-relay script that
// takes recipient, subject and body as escaped arguments.
type Delegate struct {
	sender  Sender
	node    string
	command string // printf-style, e.g. "/usr/local/bin/send-mail %s %s %s" (recipient, subject, body)
	to      string
}

// Config configures a Delegate.
type Config struct {
	Node    string
	Command string
	To      string
}

// New constructs a Delegate.
func New(sender Sender, cfg Config) *Delegate {
	return &Delegate{sender: sender, node: cfg.Node, command: cfg.Command, to: cfg.To}
}

// Send delivers subject + HTML body through the remote shell invocation.
func (d *Delegate) Send(ctx context.Context, subject, htmlBody string) error {
	if d == nil || d.sender == nil {
		return fmt.Errorf("email: delegate not configured")
	}
	cmd := fmt.Sprintf(d.command, shellQuote(d.to), shellQuote(subject), shellQuote(htmlBody))
	res, err := d.sender.Run(ctx, d.node, cmd)
	if err != nil {
		return fmt.Errorf("email: delegate invocation failed: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("email: delegate exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// shellQuote wraps a value in single quotes for the remote shell, escaping
// any embedded single quotes. The delegate command string is operator-
// configured, not user-controlled, so this targets correctness (embedded
// quotes/newlines in subjects) rather than adversarial input.
func shellQuote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}
