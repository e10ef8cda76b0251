// Package async serializes background pipeline runs.
package async

import (
	"context"
	"errors"
	"time"
)

// Trigger asks for one run. Triggers that arrive while a run is pending are
// coalesced into it.
type Trigger struct {
	Reason      string
	Paths       []string
	SubmittedAt time.Time
}

// RunFunc performs one run.
type RunFunc func(ctx context.Context, t Trigger) error

// Queue accepts run triggers until it is shut down.
type Queue interface {
	Enqueue(ctx context.Context, t Trigger) error
	Shutdown(ctx context.Context)
}

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")
