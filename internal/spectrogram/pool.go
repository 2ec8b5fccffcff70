// Package spectrogram renders per-channel waterfall layers from the
// captured stream on a fixed pool of FFT workers.
package spectrogram

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/wavescope/wavescope/internal/logger"
)

// queueDepthPerWorker sizes the job and result queues.
const queueDepthPerWorker = 4

type jobKind int

const (
	jobStop jobKind = iota // poison pill
	jobAnalyze
	jobPaint
)

// job covers rows [from, to) of one layer. Jobs of one render never share
// rows, so workers write the layer without locking.
type job struct {
	kind     jobKind
	render   *renderState
	layer    *Layer
	from, to int
}

type result struct {
	hist *Histogram // nil for paint jobs
}

// workerState is private to one worker goroutine.
type workerState struct {
	ffts   map[int]*fourier.FFT
	seq    []float64
	coeffs []complex128
}

func (w *workerState) fft(n int) *fourier.FFT {
	f, ok := w.ffts[n]
	if !ok {
		f = fourier.NewFFT(n)
		w.ffts[n] = f
	}
	return f
}

// Pool is a fixed set of workers fed through bounded job and result
// queues. Only one goroutine may submit at a time.
type Pool struct {
	jobs    chan job
	results chan result
	workers int
	wg      sync.WaitGroup

	submitMu sync.Mutex
	stopOnce sync.Once
}

// DefaultWorkers returns the number of logical cores.
func DefaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// NewPool starts workers goroutines; zero or less uses DefaultWorkers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	depth := workers * queueDepthPerWorker
	p := &Pool{
		jobs:    make(chan job, depth),
		results: make(chan result, depth),
		workers: workers,
	}
	for id := range workers {
		p.wg.Go(func() { p.worker(id) })
	}
	GetLogger().Info("spectrogram workers started",
		logger.Int("workers", workers),
		logger.Int("queue_depth", depth))
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Stop sends one poison pill per worker and joins them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.submitMu.Lock()
		defer p.submitMu.Unlock()
		for range p.workers {
			p.jobs <- job{kind: jobStop}
		}
		p.wg.Wait()
		GetLogger().Info("spectrogram workers stopped")
	})
}

// run submits jobs in batches no larger than the result queue and drains
// exactly as many results per batch, so workers never block on a full
// result queue. merge sees every result on the calling goroutine.
func (p *Pool) run(jobs []job, merge func(result)) int {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	batch := cap(p.results)
	for start := 0; start < len(jobs); start += batch {
		end := min(start+batch, len(jobs))
		for _, j := range jobs[start:end] {
			p.jobs <- j
		}
		for range end - start {
			merge(<-p.results)
		}
	}
	return len(jobs)
}

func (p *Pool) worker(id int) {
	ws := &workerState{ffts: make(map[int]*fourier.FFT)}
	GetLogger().Debug("spectrogram worker started", logger.Int("worker_id", id))
	for j := range p.jobs {
		switch j.kind {
		case jobStop:
			GetLogger().Debug("spectrogram worker stopping", logger.Int("worker_id", id))
			return
		case jobAnalyze:
			p.results <- result{hist: j.render.analyze(ws, j.layer, j.from, j.to)}
		case jobPaint:
			j.render.paint(j.layer, j.from, j.to)
			p.results <- result{}
		}
	}
}
