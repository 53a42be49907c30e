// Package rerank rescores Boolean candidates with a cross-encoder. One
// long-lived worker owns the inference session and its batch buffers;
// producers submit jobs and await futures.
package rerank

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/cascadeir/cascade/internal/model"
	"github.com/cascadeir/cascade/pkg/config"
	pkgerrors "github.com/cascadeir/cascade/pkg/errors"
	"github.com/cascadeir/cascade/pkg/metrics"
)

// Job is one rerank request: a query and the hydrated candidate documents.
type Job struct {
	Query      string
	Candidates []model.Document
}

type result struct {
	scores []model.SearchResult
	err    error
}

// Future resolves to the reranked scores for one submitted job. It is
// fulfilled exactly once; Get may be called any number of times.
type Future struct {
	ch   chan result
	once sync.Once
	res  result
}

// Get blocks until the worker fulfills the future.
func (f *Future) Get() ([]model.SearchResult, error) {
	f.once.Do(func() {
		f.res = <-f.ch
	})
	return f.res.scores, f.res.err
}

func newFuture() *Future {
	return &Future{ch: make(chan result, 1)}
}

func (f *Future) fulfill(scores []model.SearchResult, err error) {
	f.ch <- result{scores: scores, err: err}
	close(f.ch)
}

type queuedJob struct {
	job    Job
	future *Future
}

// Service owns the worker goroutine and the job queue. A Service built with a
// nil session is in the failed state: it fulfills every job with
// ErrRerankUnavailable so Boolean-only queries stay usable.
type Service struct {
	session Session
	encoder Encoder
	cfg     config.RerankConfig

	queue   chan queuedJob
	quit    chan struct{}
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool

	// Batch buffers are allocated once and reused across every chunk.
	inputIDs      []int64
	attentionMask []int64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New starts the worker. session may be nil (failed state after a model load
// error); encoder must be non-nil when session is non-nil. metrics may be nil.
func New(session Session, encoder Encoder, cfg config.RerankConfig, m *metrics.Metrics) *Service {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	s := &Service{
		session:       session,
		encoder:       encoder,
		cfg:           cfg,
		queue:         make(chan queuedJob, cfg.QueueDepth),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		inputIDs:      make([]int64, cfg.BatchSize*cfg.MaxSeqLen),
		attentionMask: make([]int64, cfg.BatchSize*cfg.MaxSeqLen),
		metrics:       m,
		logger:        slog.Default().With("component", "rerank-service"),
	}
	go s.workerLoop()
	return s
}

// Submit enqueues a job and returns its future. Jobs submitted after Close
// resolve immediately with ErrCancelled. The closed check and the enqueue
// share a mutex so no job can slip in behind the worker's shutdown drain.
func (s *Service) Submit(query string, candidates []model.Document) *Future {
	future := newFuture()
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		future.fulfill(nil, pkgerrors.ErrCancelled)
		s.countJob("cancelled")
		return future
	}
	s.queue <- queuedJob{job: Job{Query: query, Candidates: candidates}, future: future}
	s.closeMu.Unlock()
	if s.metrics != nil {
		s.metrics.RerankQueueDepth.Set(float64(len(s.queue)))
	}
	return future
}

// Close stops the worker and joins it. The job being processed completes;
// jobs still queued are fulfilled with ErrCancelled. Close is idempotent.
func (s *Service) Close() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.quit)
	s.closeMu.Unlock()
	<-s.done

	if s.session != nil {
		if err := s.session.Close(); err != nil {
			s.logger.Warn("closing inference session", "error", err)
		}
	}
}

func (s *Service) workerLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			s.drain()
			return
		case qj := <-s.queue:
			select {
			case <-s.quit:
				qj.future.fulfill(nil, pkgerrors.ErrCancelled)
				s.countJob("cancelled")
				s.drain()
				return
			default:
			}
			s.process(qj)
		}
	}
}

// drain cancels everything still queued at shutdown so no future is left
// unfulfilled.
func (s *Service) drain() {
	for {
		select {
		case qj := <-s.queue:
			qj.future.fulfill(nil, pkgerrors.ErrCancelled)
			s.countJob("cancelled")
		default:
			return
		}
	}
}

func (s *Service) process(qj queuedJob) {
	if s.session == nil {
		qj.future.fulfill(nil, pkgerrors.ErrRerankUnavailable)
		s.countJob("unavailable")
		return
	}
	scores, err := s.scoreAll(qj.job)
	if err != nil {
		qj.future.fulfill(nil, pkgerrors.Newf(pkgerrors.ErrInference, pkgerrors.ExitMissingInput, "%v", err))
		s.countJob("error")
		return
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	qj.future.fulfill(scores, nil)
	s.countJob("ok")
}

// scoreAll runs the job's candidates through the session in chunks of at most
// BatchSize pairs.
func (s *Service) scoreAll(job Job) ([]model.SearchResult, error) {
	out := make([]model.SearchResult, 0, len(job.Candidates))
	for start := 0; start < len(job.Candidates); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(job.Candidates) {
			end = len(job.Candidates)
		}
		chunk := job.Candidates[start:end]
		batch := len(chunk)
		if s.metrics != nil {
			s.metrics.RerankBatchSize.Observe(float64(batch))
		}

		for i, doc := range chunk {
			ids, mask := s.encoder.EncodePair(job.Query, truncateWords(doc.Content, s.cfg.MaxWords), s.cfg.MaxSeqLen)
			copy(s.inputIDs[i*s.cfg.MaxSeqLen:], ids)
			copy(s.attentionMask[i*s.cfg.MaxSeqLen:], mask)
		}

		logits, err := s.session.Run(s.inputIDs, s.attentionMask, batch)
		if err != nil {
			return nil, err
		}
		dim := s.session.OutputDim()
		for i, doc := range chunk {
			out = append(out, model.SearchResult{
				DocID: doc.ID,
				Score: scoreFromLogits(logits[i*dim : (i+1)*dim]),
			})
		}
	}
	return out, nil
}

// scoreFromLogits collapses a model output row to a scalar. Two-logit heads
// are [not-relevant, relevant]; sigmoid of their difference equals the
// softmax probability of the relevant column. Single-output heads pass
// through.
func scoreFromLogits(row []float32) float64 {
	if len(row) == 2 {
		return 1.0 / (1.0 + math.Exp(float64(row[0]-row[1])))
	}
	return float64(row[0])
}

// truncateWords caps a document at maxWords whitespace-separated words. The
// transformer window is fixed, so this is the throughput lever.
func truncateWords(content string, maxWords int) string {
	if maxWords <= 0 {
		return content
	}
	fields := strings.Fields(content)
	if len(fields) <= maxWords {
		return content
	}
	return strings.Join(fields[:maxWords], " ")
}

func (s *Service) countJob(outcome string) {
	if s.metrics != nil {
		s.metrics.RerankJobsTotal.WithLabelValues(outcome).Inc()
	}
}
