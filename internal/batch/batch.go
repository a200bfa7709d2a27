// Package batch checks many SOL documents concurrently. Each document is
// decoded, re-encoded and compared against its input.
package batch

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/DMA-Software/dma-golso/pkg/sol"
)

// Job is one named input.
type Job struct {
	Name string
	Data []byte
}

// Result is the outcome of checking one job. Index is the job's position in
// the slice given to Run.
type Result struct {
	Index    int
	Name     string
	Document *sol.Document
	// Canonical is set when re-encoding reproduced the input byte for byte.
	Canonical bool
	Err       error
}

// Runner checks jobs with a bounded number of goroutines.
type Runner struct {
	id      string
	opts    sol.Options
	workers int
	log     logrus.FieldLogger
	results cmap.ConcurrentMap
}

// NewRunner creates a runner with its own run id. workers below one means one.
func NewRunner(opts sol.Options, workers int, logger logrus.FieldLogger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id := uuid.NewV4().String()
	return &Runner{
		id:      id,
		opts:    opts,
		workers: workers,
		log:     logger.WithField("run", id),
		results: cmap.New(),
	}
}

// ID returns the run id attached to every log entry.
func (r *Runner) ID() string {
	return r.id
}

// Run checks every job and returns one result per job, sorted by name and then
// by index. Jobs not started before ctx is done get ctx.Err() as their error.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			r.store(Result{Index: i, Name: job.Name, Err: err})
			continue
		}
		select {
		case <-ctx.Done():
			r.store(Result{Index: i, Name: job.Name, Err: ctx.Err()})
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer func() {
				<-sem
				wg.Done()
			}()
			res := r.check(job)
			res.Index = i
			r.store(res)
		}(i, job)
	}
	wg.Wait()

	return r.Results()
}

// Results returns the results stored so far, sorted by name and then by index.
func (r *Runner) Results() []Result {
	out := make([]Result, 0, r.results.Count())
	for item := range r.results.IterBuffered() {
		out = append(out, item.Val.(Result))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Index < out[j].Index
	})
	return out
}

func (r *Runner) store(res Result) {
	r.results.Set(strconv.Itoa(res.Index), res)
}

func (r *Runner) check(job Job) Result {
	log := r.log.WithField("file", job.Name)
	opts := r.opts
	opts.Logger = log

	doc, err := sol.Decode(job.Data, opts)
	if err != nil {
		log.WithError(err).Warn("decode failed")
		return Result{Name: job.Name, Err: err}
	}

	out, err := sol.Encode(doc, opts)
	if err != nil {
		log.WithError(err).Warn("re-encode failed")
		return Result{Name: job.Name, Document: doc, Err: err}
	}

	canonical := bytes.Equal(out, job.Data)
	log.WithFields(logrus.Fields{
		"elements":  len(doc.Body),
		"version":   doc.Version.String(),
		"canonical": canonical,
	}).Debug("checked")
	return Result{Name: job.Name, Document: doc, Canonical: canonical}
}
