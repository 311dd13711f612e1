package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDispatcherBusy = errors.New("dispatcher queue full")
	ErrClosed         = errors.New("dispatcher closed")
	ErrCanceled       = errors.New("job canceled")
)

// Task is the unit of work run on a pooled worker.
type Task func(ctx context.Context) error

// Config sizes the dispatcher and its worker pool.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type jobType int

const (
	jobRun jobType = iota
	jobStop
)

type Job struct {
	Type    jobType
	UserKey string
	ctx     context.Context
	task    Task
	result  chan error
}

func (j Job) finish(err error) {
	if j.result != nil {
		j.result <- err
	}
}

func (j Job) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker task panic: %v", r)
		}
		j.finish(err)
	}()
	if err := j.ctx.Err(); err != nil {
		return err
	}
	return j.task(j.ctx)
}
