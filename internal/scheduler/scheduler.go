// Package scheduler runs relay jobs on a bounded pool of workers. Every URL
// becomes an independent job with its own cancellation handle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/pipeline"
	"github.com/tanq16/linkrelay/internal/progress"
	"github.com/tanq16/linkrelay/internal/utils"
)

var ErrClosed = errors.New("scheduler is closed")

// Selector picks the source for a URL; downloaders.Registry implements it.
type Selector interface {
	Select(url string) utils.Source
}

// Observer is implemented by status collaborators that track job lifecycle
// on top of plain status edits.
type Observer interface {
	JobStarted(handle, url string)
	JobFinished(handle, summary string, err error)
}

// Notifier delivers one-off notices (failed windows, dropped parts) that
// must not overwrite the status message.
type Notifier interface {
	Notify(ctx context.Context, handle, text string) error
}

type Config struct {
	Workers          int
	WindowSize       uint64
	PartSize         uint64
	Policy           utils.FailurePolicy
	ProgressInterval time.Duration
}

type Scheduler struct {
	selector Selector
	sink     utils.Sink
	status   utils.StatusEditor
	cfg      Config
	slots    chan struct{}

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	jobs   []*Job
}

func New(selector Selector, sink utils.Sink, status utils.StatusEditor, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if status == nil {
		status = discardStatus{}
	}
	return &Scheduler{
		selector: selector,
		sink:     sink,
		status:   status,
		cfg:      cfg,
		slots:    make(chan struct{}, cfg.Workers),
	}
}

// Submit validates url and queues a job for it. The job starts as soon as a
// worker slot is free; ctx bounds its whole lifetime.
func (s *Scheduler) Submit(ctx context.Context, url string) (*Job, error) {
	if err := utils.ValidateURL(url); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	job := newJob(ctx, uuid.New().String(), url)
	s.jobs = append(s.jobs, job)
	s.wg.Add(1)
	go s.process(job)
	log.Debug().Str("op", "scheduler/submit").Msgf("queued job %s for %s", job.ID, url)
	return job, nil
}

// Wait stops accepting jobs and blocks until every submitted job is done.
func (s *Scheduler) Wait() []*Job {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return s.Jobs()
}

func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

// CancelAll cancels every job that has not finished yet.
func (s *Scheduler) CancelAll() {
	for _, job := range s.Jobs() {
		job.Cancel()
	}
}

func (s *Scheduler) process(job *Job) {
	defer s.wg.Done()
	select {
	case s.slots <- struct{}{}:
	case <-job.ctx.Done():
		s.finish(job, nil, job.ctx.Err(), nil)
		return
	}
	defer func() { <-s.slots }()

	observer, _ := s.status.(Observer)
	if observer != nil {
		observer.JobStarted(job.ID, job.URL)
	}
	source := s.selector.Select(job.URL)
	if source == nil {
		s.finish(job, nil, fmt.Errorf("%w: no source handles %s", utils.ErrUnsupportedLink, job.URL), nil)
		return
	}
	log.Info().Str("op", "scheduler/process").Msgf("job %s: %s via %s", job.ID, job.URL, source.Name())

	reporter := progress.New(s.status, job.ID, 0, progress.Options{Interval: s.cfg.ProgressInterval, Label: job.URL})
	notifier, _ := s.status.(Notifier)
	p := pipeline.New(source, s.sink, pipeline.Config{
		WindowSize: s.cfg.WindowSize,
		PartSize:   s.cfg.PartSize,
		Policy:     s.cfg.Policy,
		Progress:   reporter,
		OnState:    job.setState,
		OnResolved: func(info *utils.FileInfo) {
			reporter.SetTotal(info.Size, info.Name)
		},
		Notify: func(msg string) {
			if notifier == nil {
				return
			}
			if err := notifier.Notify(job.ctx, job.ID, msg); err != nil {
				log.Warn().Str("op", "scheduler/process").Err(err).Msgf("notice for job %s not delivered", job.ID)
			}
		},
	})
	res, err := p.Run(job.ctx, job.URL)
	s.finish(job, res, err, reporter)
}

func (s *Scheduler) finish(job *Job, res *pipeline.Result, err error, reporter *progress.Reporter) {
	summary := ""
	switch {
	case err != nil:
		summary = fmt.Sprintf("failed: %v", err)
	case res != nil:
		summary = res.Summary()
	}
	// the job context may already be cancelled; the final edit still goes out
	ctx := context.WithoutCancel(job.ctx)
	var editErr error
	if reporter != nil {
		editErr = reporter.Finish(ctx, summary)
	} else {
		// failed before a reporter existed, the final edit is still owed
		editErr = s.status.Edit(ctx, job.ID, summary)
	}
	if editErr != nil {
		log.Warn().Str("op", "scheduler/finish").Err(editErr).Msgf("final status for job %s not delivered", job.ID)
	}
	if observer, ok := s.status.(Observer); ok {
		outcome := err
		if outcome == nil && res != nil {
			outcome = res.IntegrityErr
		}
		observer.JobFinished(job.ID, summary, outcome)
	}
	if err != nil {
		log.Error().Str("op", "scheduler/finish").Err(err).Msgf("job %s failed", job.ID)
	}
	job.complete(res, err)
}

type discardStatus struct{}

func (discardStatus) Edit(context.Context, string, string) error { return nil }
