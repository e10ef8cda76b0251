package pipeline

import (
	"context"
	"sync"
)

// Job is a batch running in the background. Lines must be drained by the
// caller; the channel is closed when the run ends.
type Job struct {
	lines  chan Line
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	res Result
	err error
}

// Start runs proc in a new goroutine.
func Start(ctx context.Context, proc *Processor) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		lines:  make(chan Line, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		defer close(j.lines)
		defer cancel()

		rep := ReporterFunc(func(l Line) {
			select {
			case j.lines <- l:
			case <-ctx.Done():
				// nobody may be reading anymore; keep the run from blocking
				select {
				case j.lines <- l:
				default:
				}
			}
		})
		res, err := proc.Run(ctx, rep)

		j.mu.Lock()
		j.res, j.err = res, err
		j.mu.Unlock()
	}()
	return j
}

func (j *Job) Lines() <-chan Line { return j.lines }

// Cancel asks the run to stop after the current step.
func (j *Job) Cancel() { j.cancel() }

// Done is closed once the run has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the run finishes.
func (j *Job) Wait() (Result, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.res, j.err
}
