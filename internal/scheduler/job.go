package scheduler

import (
	"context"
	"sync"

	"github.com/tanq16/linkrelay/internal/pipeline"
)

type Job struct {
	ID  string
	URL string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  pipeline.State
	result *pipeline.Result
	err    error
}

func newJob(parent context.Context, id, url string) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{ID: id, URL: url, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Cancel stops the job; it is safe to call at any time and more than once.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result blocks until the job is done.
func (j *Job) Result() (*pipeline.Result, error) {
	<-j.done
	return j.result, j.err
}

func (j *Job) State() pipeline.State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(state pipeline.State) {
	j.mu.Lock()
	j.state = state
	j.mu.Unlock()
}

func (j *Job) complete(res *pipeline.Result, err error) {
	j.mu.Lock()
	j.result = res
	j.err = err
	if err != nil {
		j.state = pipeline.StateFailed
	}
	j.mu.Unlock()
	j.cancel()
	close(j.done)
}
