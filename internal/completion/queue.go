package completion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/analyzer"
)

// Request is one submitted completion job.
type Request struct {
	ID      uint64
	Text    string
	Context analyzer.Context
	Label   string
}

// Result is delivered to subscribers for the request that was current when
// it finished. Err is nil on success; Kind classifies failures.
type Result struct {
	RequestID uint64
	Text      string
	Label     string
	Err       error
	Kind      FailureKind
}

// Executor runs one request. *Engine satisfies it.
type Executor interface {
	GetCompletion(ctx context.Context, c analyzer.Context) (string, error)
}

// QueueOptions tunes a Queue. Zero values select defaults.
type QueueOptions struct {
	// Debounce delays execution so that bursts collapse onto their last
	// request. Zero disables it.
	Debounce time.Duration
	// SubscriberBuffer is the number of undelivered results a subscriber may
	// hold before the oldest is dropped.
	SubscriberBuffer int
	Logger           zerolog.Logger
}

// QueueStats counts queue activity since construction.
type QueueStats struct {
	Submitted uint64 `json:"submitted"`
	Stale     uint64 `json:"stale"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Current   uint64 `json:"current"`
}

// Queue is a single-flight request queue: at most one request executes at a
// time and at most one waits. A newer submission replaces the waiting one and
// cancels the executing one, whose result is then discarded.
type Queue struct {
	exec     Executor
	debounce time.Duration
	subBuf   int
	log      zerolog.Logger

	mu             sync.Mutex
	lastID         uint64
	pending        *Request
	inflightCancel context.CancelFunc
	closed         bool

	subMu   sync.Mutex
	subs    map[int]chan Result
	nextSub int

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	submitted atomic.Uint64
	stale     atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewQueue starts the worker goroutine. Close must be called to stop it.
func NewQueue(exec Executor, opts QueueOptions) *Queue {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		exec:     exec,
		debounce: opts.Debounce,
		subBuf:   opts.SubscriberBuffer,
		log:      opts.Logger.With().Str("component", "queue").Logger(),
		subs:     make(map[int]chan Result),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go q.worker()
	return q
}

// Submit enqueues a request and returns its id. Ids increase strictly from 1.
// A closed queue returns 0.
func (q *Queue) Submit(text string, c analyzer.Context, label string) uint64 {
	c.Content = text
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	q.lastID++
	id := q.lastID
	if q.pending != nil {
		q.stale.Add(1)
		q.log.Debug().Str("event", "stale_replaced").Uint64("request_id", q.pending.ID).Msg("pending request superseded")
	}
	q.pending = &Request{ID: id, Text: text, Context: c, Label: label}
	if q.inflightCancel != nil {
		q.inflightCancel()
	}
	q.mu.Unlock()

	q.submitted.Add(1)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return id
}

// Current returns the id of the most recent submission, 0 if none.
func (q *Queue) Current() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastID
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Submitted: q.submitted.Load(),
		Stale:     q.stale.Load(),
		Delivered: q.delivered.Load(),
		Failed:    q.failed.Load(),
		Current:   q.Current(),
	}
}

// Subscribe registers a result channel. The channel is closed by the returned
// cancel function or by Close. When the subscriber falls behind, its oldest
// undelivered result is dropped.
func (q *Queue) Subscribe() (<-chan Result, func()) {
	ch := make(chan Result, q.subBuf)
	q.subMu.Lock()
	if q.subs == nil {
		q.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch
	q.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.subMu.Lock()
			defer q.subMu.Unlock()
			if c, ok := q.subs[id]; ok {
				delete(q.subs, id)
				close(c)
			}
		})
	}
}

// OnResult runs cb for each delivered result on a goroutine dedicated to this
// registration. A panicking callback is logged and does not stop delivery.
func (q *Queue) OnResult(cb func(Result)) func() {
	ch, cancel := q.Subscribe()
	go func() {
		for res := range ch {
			q.invoke(cb, res)
		}
	}()
	return cancel
}

func (q *Queue) invoke(cb func(Result), res Result) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("event", "callback_panic").Interface("panic", r).Msg("result callback panicked")
		}
	}()
	cb(res)
}

// Close cancels any in-flight request, stops the worker and closes every
// subscriber channel. It is safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.pending = nil
		if q.inflightCancel != nil {
			q.inflightCancel()
		}
		q.mu.Unlock()
		q.cancel()
		<-q.done

		q.subMu.Lock()
		for id, ch := range q.subs {
			delete(q.subs, id)
			close(ch)
		}
		q.subs = nil
		q.subMu.Unlock()
	})
}

func (q *Queue) worker() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}
		for {
			req := q.take()
			if req == nil {
				break
			}
			q.run(req)
			if q.ctx.Err() != nil {
				return
			}
		}
	}
}

func (q *Queue) take() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	req := q.pending
	q.pending = nil
	return req
}

func (q *Queue) run(req *Request) {
	if q.debounce > 0 {
		t := time.NewTimer(q.debounce)
		select {
		case <-q.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	ctx, cancel := context.WithCancel(q.ctx)
	defer cancel()
	q.mu.Lock()
	if req.ID != q.lastID {
		q.mu.Unlock()
		q.stale.Add(1)
		return
	}
	q.inflightCancel = cancel
	q.mu.Unlock()

	text, err := q.execute(ctx, req)

	q.mu.Lock()
	q.inflightCancel = nil
	current := req.ID == q.lastID && !q.closed
	q.mu.Unlock()
	if !current {
		q.stale.Add(1)
		q.log.Debug().Str("event", "stale_discarded").Uint64("request_id", req.ID).Msg("result of superseded request discarded")
		return
	}

	res := Result{RequestID: req.ID, Text: text, Label: req.Label, Err: err, Kind: KindOf(err)}
	if err != nil {
		q.failed.Add(1)
	}
	q.deliver(res)
}

func (q *Queue) execute(ctx context.Context, req *Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("event", "executor_panic").Interface("panic", r).Uint64("request_id", req.ID).Msg("recovered panic in completion")
			text, err = "", &InferenceFailedError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	return q.exec.GetCompletion(ctx, req.Context)
}

func (q *Queue) deliver(res Result) {
	q.subMu.Lock()
	defer q.subMu.Unlock()
	for _, ch := range q.subs {
		select {
		case ch <- res:
			continue
		default:
		}
		// Full: drop the oldest so the newest always lands. Only this
		// goroutine sends, so the second attempt has room.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- res:
		default:
		}
	}
	q.delivered.Add(1)
}
