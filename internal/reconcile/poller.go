package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	checkoutdomain "github.com/smallbiznis/blsuntech/internal/checkout/domain"
)

type State string

const (
	StateLoading State = "loading"
	StatePaid    State = "paid"
	StateUnpaid  State = "unpaid"
	StateError   State = "error"
)

const (
	MessageLoading        = "Checking payment status..."
	MessagePaid           = "Payment confirmed. Thank you!"
	MessageOpen           = "Checkout is still open — payment not completed yet."
	MessageExpired        = "This checkout session expired. Please start again."
	MessageNotConfirmed   = "Payment not confirmed for this session yet."
	MessageNetworkError   = "Network error. Please refresh and try again."
	MessageMissingSession = "Missing session_id. Please return to checkout and try again."
)

const (
	DefaultMaxAttempts = 6
	DefaultInterval    = 1600 * time.Millisecond
)

// Terminal reports whether the poller stops for good once it reaches s.
func (s State) Terminal() bool {
	return s == StatePaid || s == StateError
}

// Snapshot is one observation of the session as the poller sees it.
type Snapshot struct {
	State         State
	Message       string
	Session       *checkoutdomain.Session
	OfferingLabel string
	Attempt       int
	// Retrying is set when another automatic attempt is scheduled.
	Retrying bool
}

// Fetcher reads the current state of a checkout session.
type Fetcher interface {
	FetchSession(ctx context.Context, id string) (checkoutdomain.Session, error)
}

// LabelResolver is optionally implemented by a Fetcher that can map an
// offering id to its display label.
type LabelResolver interface {
	OfferingLabel(ctx context.Context, offeringID string) (string, error)
}

type Config struct {
	MaxAttempts int
	Interval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Poller drives a single session through loading, paid, unpaid and error.
// All fetches happen on one goroutine, so at most one is in flight.
type Poller struct {
	fetcher   Fetcher
	sessionID string
	cfg       Config
	after     func(time.Duration) <-chan time.Time

	out     chan Snapshot
	refresh chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	current  Snapshot
	observed *Snapshot
}

func NewPoller(fetcher Fetcher, sessionID string, cfg Config) *Poller {
	return &Poller{
		fetcher:   fetcher,
		sessionID: strings.TrimSpace(sessionID),
		cfg:       cfg.withDefaults(),
		after:     time.After,
		out:       make(chan Snapshot, 1),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		current:   Snapshot{State: StateLoading, Message: MessageLoading},
	}
}

// Start launches the poll loop and returns the snapshot stream. The stream is
// closed once the poller reaches a terminal state or is cancelled. Calling
// Start again returns the same stream.
func (p *Poller) Start(ctx context.Context) <-chan Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return p.out
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
	return p.out
}

// Refresh starts a new round of attempts with a fresh budget. It has no effect
// once the poller is terminal.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Cancel stops in-flight and scheduled polls. It is safe to call more than once.
func (p *Poller) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the poll loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.out)

	if p.sessionID == "" {
		p.emit(ctx, Snapshot{State: StateError, Message: MessageMissingSession})
		return
	}

	for {
		if p.cycle(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-p.refresh:
		}
	}
}

// cycle runs one attempt budget and reports whether the poller is finished.
func (p *Poller) cycle(ctx context.Context) bool {
	p.emit(ctx, Snapshot{State: StateLoading, Message: MessageLoading})

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		session, err := p.fetcher.FetchSession(ctx, p.sessionID)
		if ctx.Err() != nil {
			return true
		}

		if err != nil {
			last := p.lastObserved()
			if last == nil {
				p.emit(ctx, Snapshot{State: StateError, Message: fetchErrorMessage(err), Attempt: attempt})
				return true
			}
			if p.Current().State == StateLoading || attempt == p.cfg.MaxAttempts {
				last.Attempt = attempt
				last.Retrying = attempt < p.cfg.MaxAttempts
				p.emit(ctx, *last)
			}
		} else {
			snap := p.classify(ctx, session, attempt)
			snap.Retrying = snap.State != StatePaid &&
				session.Status != checkoutdomain.StatusExpired &&
				attempt < p.cfg.MaxAttempts
			p.observe(snap)
			p.emit(ctx, snap)
			if snap.State == StatePaid {
				return true
			}
			if session.Status == checkoutdomain.StatusExpired {
				return false
			}
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return true
		case <-p.after(p.cfg.Interval):
		case <-p.refresh:
			attempt = 0
			p.emit(ctx, Snapshot{State: StateLoading, Message: MessageLoading})
		}
	}
	return false
}

func (p *Poller) classify(ctx context.Context, session checkoutdomain.Session, attempt int) Snapshot {
	snap := Snapshot{
		Session:       &session,
		Attempt:       attempt,
		OfferingLabel: p.resolveLabel(ctx, session),
	}
	switch {
	case session.IsPaid():
		snap.State, snap.Message = StatePaid, MessagePaid
	case session.Status == checkoutdomain.StatusExpired:
		snap.State, snap.Message = StateUnpaid, MessageExpired
	case session.Status == checkoutdomain.StatusOpen:
		snap.State, snap.Message = StateUnpaid, MessageOpen
	default:
		snap.State, snap.Message = StateUnpaid, MessageNotConfirmed
	}
	return snap
}

func (p *Poller) resolveLabel(ctx context.Context, session checkoutdomain.Session) string {
	resolver, ok := p.fetcher.(LabelResolver)
	if ok && session.OfferingID != "" {
		if label, err := resolver.OfferingLabel(ctx, session.OfferingID); err == nil && label != "" {
			return label
		}
	}
	return session.OfferingLabel()
}

func (p *Poller) observe(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observed = &snap
}

func (p *Poller) lastObserved() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.observed == nil {
		return nil
	}
	snap := *p.observed
	return &snap
}

func (p *Poller) emit(ctx context.Context, snap Snapshot) {
	p.mu.Lock()
	p.current = snap
	p.mu.Unlock()

	select {
	case p.out <- snap:
	case <-ctx.Done():
	}
}

func fetchErrorMessage(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return MessageNetworkError
}
