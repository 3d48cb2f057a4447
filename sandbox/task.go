package sandbox

import "context"

// Task is a blocking sandbox call running in its own goroutine. It lets a
// front end wait for the result or give up on it.
type Task[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}
	result T
	err    error
}

// Go starts fn in a new goroutine with a context derived from ctx
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel()
		t.result, t.err = fn(ctx)
	}()

	return t
}

// Done is closed when the task has finished
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its result
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.result, t.err
}

// Cancel asks the task to stop. The engines kill the running container, so
// Wait returns shortly after with whatever was captured.
func (t *Task[T]) Cancel() {
	t.cancel()
}
