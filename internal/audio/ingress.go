package audio

import (
	"context"
	"log/slog"
)

// Ingress drives a CaptureMachine from a continuous frame source. It is
// shutdown-signal aware: cancelling ctx stops the loop, but a backend
// disconnection elsewhere in the system does not — local capture keeps
// running and a reconnect resumes streaming into the same machine.
type Ingress struct {
	machine *CaptureMachine
	logger  *slog.Logger
}

// NewIngress constructs an Ingress bound to machine.
func NewIngress(machine *CaptureMachine, logger *slog.Logger) *Ingress {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingress{machine: machine, logger: logger}
}

// Run reads frames from source until it closes or ctx is cancelled.
func (i *Ingress) Run(ctx context.Context, source <-chan Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			i.machine.ProcessFrame(ctx, frame)
		}
	}
}
