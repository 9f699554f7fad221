// Package payment runs the payment session state machine: a synchronous
// confirmation for cash and a deadline-bounded transfer poll for QR.
package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultWindow       = 5 * time.Minute
	defaultFetchTimeout = 5 * time.Second
)

const (
	ReasonConfirmed = "payment confirmed"
	ReasonExpired   = "payment window expired"
	ReasonCancelled = "payment cancelled by operator"
	ReasonShutdown  = "terminal shutting down"
)

// ErrClosed is returned for sessions requested after Close.
var ErrClosed = errors.New("payment reconciler closed")

// TransferSource is the backend side of reconciliation.
type TransferSource interface {
	HasTransfer(ctx context.Context, orderCode string) (bool, error)
	GetOrder(ctx context.Context, orderCode string) (*domain.Order, error)
}

// Outcome is the terminal result of a session.
type Outcome struct {
	Session domain.PaymentSession `json:"session"`
	Order   *domain.Order         `json:"order,omitempty"`
	Reason  string                `json:"reason"`
}

type Options struct {
	PollInterval time.Duration
	Window       time.Duration
	FetchTimeout time.Duration
	QR           QRConfig
	Logger       *zap.Logger
	// OnSettle receives every terminal outcome, outside the reconciler lock.
	OnSettle func(Outcome)
}

type session struct {
	domain.PaymentSession
	order  *domain.Order
	cancel context.CancelFunc
}

// Reconciler owns at most one payment session at a time.
type Reconciler struct {
	source   TransferSource
	interval time.Duration
	window   time.Duration
	fetch    time.Duration
	qr       QRConfig
	onSettle func(Outcome)
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *session
	// settling is an outcome claimed but not yet delivered to OnSettle.
	settling *Outcome
	last     *Outcome
	closed   bool

	// wg counts poll goroutines and undelivered outcomes.
	wg sync.WaitGroup
}

func NewReconciler(source TransferSource, opts Options) *Reconciler {
	r := &Reconciler{
		source:   source,
		interval: opts.PollInterval,
		window:   opts.Window,
		fetch:    opts.FetchTimeout,
		qr:       opts.QR,
		onSettle: opts.OnSettle,
		logger:   logging.OrNop(opts.Logger).Named("reconciler"),
		now:      time.Now,
	}
	if r.interval <= 0 {
		r.interval = DefaultPollInterval
	}
	if r.window <= 0 {
		r.window = DefaultWindow
	}
	if r.fetch <= 0 {
		r.fetch = defaultFetchTimeout
	}
	return r
}

// State returns the state of the active session. While an outcome is still
// being delivered it reports that outcome's terminal state; otherwise Idle.
func (r *Reconciler) State() domain.PaymentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.current != nil:
		return r.current.State
	case r.settling != nil:
		return r.settling.Session.State
	default:
		return domain.PaymentIdle
	}
}

// Busy reports whether a session is open or its outcome is still being
// applied. No new session can start while it is true.
func (r *Reconciler) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil || r.settling != nil
}

func (r *Reconciler) availableLocked() error {
	if r.closed {
		return ErrClosed
	}
	if r.current != nil || r.settling != nil {
		return domain.ErrPaymentInProgress
	}
	return nil
}

// Current returns a copy of the active session.
func (r *Reconciler) Current() (domain.PaymentSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.PaymentSession{}, false
	}
	return r.current.PaymentSession, true
}

// Last returns the most recent terminal outcome, if any.
func (r *Reconciler) Last() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Outcome{}, false
	}
	return *r.last, true
}

// BeginCash enters AwaitingCashConfirmation when received covers final.
func (r *Reconciler) BeginCash(final, received int64) (domain.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.availableLocked(); err != nil {
		return domain.PaymentSession{}, err
	}
	if received-final < 0 {
		return domain.PaymentSession{}, domain.ErrInsufficientCash
	}
	s := &session{PaymentSession: domain.PaymentSession{
		ID:             uuid.NewString(),
		Method:         domain.PaymentCash,
		State:          domain.PaymentAwaitingCashConfirmation,
		Amount:         final,
		ReceivedAmount: received,
		Change:         received - final,
		StartedAt:      r.now(),
	}}
	r.current = s
	r.logger.Info("cash payment awaiting confirmation",
		zap.String("session_id", s.ID),
		zap.Int64("amount", final),
		zap.Int64("received", received))
	return s.PaymentSession, nil
}

// ConfirmCash settles the awaiting cash session against the created order.
func (r *Reconciler) ConfirmCash(order *domain.Order) (Outcome, error) {
	r.mu.Lock()
	s := r.current
	if s == nil || s.State != domain.PaymentAwaitingCashConfirmation {
		r.mu.Unlock()
		return Outcome{}, domain.ErrNoActivePayment
	}
	if order != nil {
		s.OrderCode = order.OrderCode
		s.order = order
	}
	out, ok := r.claimLocked(s, domain.PaymentConfirmed, ReasonConfirmed)
	r.mu.Unlock()
	if !ok {
		return Outcome{}, domain.ErrNoActivePayment
	}
	r.deliver(out)
	return out, nil
}

// StartQR enters AwaitingQRPayment for a created order and starts polling.
// The poll runs until a transfer is detected, the window closes, or the
// session is cancelled.
func (r *Reconciler) StartQR(order *domain.Order) (domain.PaymentSession, error) {
	if order == nil || order.OrderCode == "" {
		return domain.PaymentSession{}, domain.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.availableLocked(); err != nil {
		return domain.PaymentSession{}, err
	}
	started := r.now()
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		PaymentSession: domain.PaymentSession{
			ID:         uuid.NewString(),
			OrderCode:  order.OrderCode,
			Method:     domain.PaymentQR,
			State:      domain.PaymentAwaitingQR,
			Amount:     order.FinalAmount,
			QRImageURL: QRImageURL(r.qr, order.FinalAmount, order.OrderCode),
			StartedAt:  started,
			Deadline:   started.Add(r.window),
		},
		order:  order,
		cancel: cancel,
	}
	r.current = s
	r.logger.Info("qr payment started",
		zap.String("session_id", s.ID),
		zap.String("order_code", s.OrderCode),
		zap.Int64("amount", s.Amount),
		zap.Time("deadline", s.Deadline))
	r.wg.Add(1)
	go r.poll(ctx, s)
	return s.PaymentSession, nil
}

// Cancel aborts the active session. The cart is not touched here.
func (r *Reconciler) Cancel() (Outcome, error) {
	return r.abort(ReasonCancelled)
}

// Close refuses new sessions, ends the active one and waits until every
// poll has stopped and every outcome has reached OnSettle.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	active := r.current != nil
	r.mu.Unlock()
	if active {
		_, _ = r.abort(ReasonShutdown)
	}
	r.wg.Wait()
}

func (r *Reconciler) abort(reason string) (Outcome, error) {
	r.mu.Lock()
	s := r.current
	if s == nil {
		r.mu.Unlock()
		return Outcome{}, domain.ErrNoActivePayment
	}
	out, ok := r.claimLocked(s, domain.PaymentCancelled, reason)
	r.mu.Unlock()
	if !ok {
		return Outcome{}, domain.ErrNoActivePayment
	}
	r.deliver(out)
	return out, nil
}

// claimLocked performs the single terminal transition of s. It reports false
// when s has already left its awaiting state.
func (r *Reconciler) claimLocked(s *session, state domain.PaymentState, reason string) (Outcome, bool) {
	if r.current != s || !s.State.IsAwaiting() {
		return Outcome{}, false
	}
	s.State = state
	s.EndedAt = r.now()
	if s.cancel != nil {
		s.cancel()
	}
	r.current = nil
	out := Outcome{Session: s.PaymentSession, Order: s.order, Reason: reason}
	r.last = &out
	pending := out
	r.settling = &pending
	r.wg.Add(1)
	return out, true
}

func (r *Reconciler) settle(s *session, state domain.PaymentState, reason string) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimLocked(s, state, reason)
}

func (r *Reconciler) deliver(out Outcome) {
	r.logger.Info("payment session settled",
		zap.String("session_id", out.Session.ID),
		zap.String("order_code", out.Session.OrderCode),
		zap.String("method", string(out.Session.Method)),
		zap.String("state", out.Session.State.String()),
		zap.String("reason", out.Reason))
	if r.onSettle != nil {
		r.onSettle(out)
	}
	r.mu.Lock()
	if r.settling != nil && r.settling.Session.ID == out.Session.ID {
		r.settling = nil
	}
	r.mu.Unlock()
	r.wg.Done()
}

func (r *Reconciler) poll(ctx context.Context, s *session) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.Deadline.Sub(r.now()))
	defer deadline.Stop()

	log := r.logger.With(zap.String("session_id", s.ID), zap.String("order_code", s.OrderCode))
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			r.expire(s)
			return
		case <-ticker.C:
			if r.now().After(s.Deadline) {
				r.expire(s)
				return
			}
			detected, err := r.source.HasTransfer(ctx, s.OrderCode)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("transfer poll failed", zap.Error(err))
				continue
			}
			if !detected {
				continue
			}
			if r.now().After(s.Deadline) {
				log.Warn("transfer detected after the payment window closed")
				r.expire(s)
				return
			}
			r.confirmQR(ctx, s)
			return
		}
	}
}

func (r *Reconciler) expire(s *session) {
	if out, ok := r.settle(s, domain.PaymentExpired, ReasonExpired); ok {
		r.deliver(out)
	}
}

func (r *Reconciler) confirmQR(ctx context.Context, s *session) {
	out, ok := r.settle(s, domain.PaymentConfirmed, ReasonConfirmed)
	if !ok {
		return
	}
	// The session context is cancelled by the transition above.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetch)
	defer cancel()
	order, err := r.source.GetOrder(fetchCtx, s.OrderCode)
	if err != nil || order == nil || order.OrderCode == "" {
		r.logger.Warn("canonical order fetch failed, keeping local order",
			zap.String("order_code", s.OrderCode),
			zap.Error(err))
	} else {
		if order.PaymentMethod == "" {
			order.PaymentMethod = domain.PaymentQR
		}
		out.Order = order
		r.mu.Lock()
		if r.last != nil && r.last.Session.ID == out.Session.ID {
			r.last.Order = order
		}
		r.mu.Unlock()
	}
	r.deliver(out)
}
