package tui

import (
	"context"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

// Job is one conversion requested from the form.
type Job struct {
	Input   string
	Output  string
	TwoPass bool
}

// RunFunc performs a job, reporting through r. It runs off the UI goroutine.
type RunFunc func(ctx context.Context, job Job, r model.Reporter) (model.BatchResult, error)
