// Package checkout is the terminal controller. It owns the cart, the member
// and manual discount inputs, the in-flight submission guard and the payment
// reconciler, and applies each settled payment to that state.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bookstore-pos/internal/cart"
	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/events"
	"bookstore-pos/internal/logging"
	"bookstore-pos/internal/pricing"
	"bookstore-pos/internal/recent"
	"bookstore-pos/internal/service/order"
	"bookstore-pos/internal/service/payment"
	"go.uber.org/zap"
)

const settleTimeout = 5 * time.Second

type productSource interface {
	Get(ctx context.Context, code string) (*domain.Product, error)
}

type customerResolver interface {
	Resolve(ctx context.Context, member *domain.MemberInfo, phone string) string
	LookupMember(ctx context.Context, phone string) (*domain.MemberInfo, error)
}

type orderSubmitter interface {
	Submit(ctx context.Context, in order.SubmitInput) (*order.Submission, error)
}

type paymentJournal interface {
	Record(ctx context.Context, rec domain.PaymentRecord) error
}

type Deps struct {
	Catalog      productSource
	Customers    customerResolver
	Orders       orderSubmitter
	Transfers    payment.TransferSource
	Recent       recent.Store
	Journal      paymentJournal
	Events       events.Publisher
	EmployeeCode string
	Logger       *zap.Logger
}

// CheckoutInput carries the free-text fields sent with an order.
type CheckoutInput struct {
	Note    string `json:"note"`
	Address string `json:"address"`
}

// Snapshot is everything the checkout panel renders.
type Snapshot struct {
	Lines          []domain.CartLineItem  `json:"lines"`
	Pricing        pricing.Breakdown      `json:"pricing"`
	Member         *domain.MemberInfo     `json:"member,omitempty"`
	Phone          string                 `json:"phone,omitempty"`
	ManualDiscount *domain.ManualDiscount `json:"manualDiscount,omitempty"`
	PaymentState   domain.PaymentState    `json:"paymentState"`
	Submitting     bool                   `json:"submitting"`
}

// PaymentStatus is the active session, if any, and the last outcome.
type PaymentStatus struct {
	State   domain.PaymentState    `json:"state"`
	Session *domain.PaymentSession `json:"session,omitempty"`
	Last    *payment.Outcome       `json:"last,omitempty"`
}

type Service struct {
	catalog      productSource
	customers    customerResolver
	orders       orderSubmitter
	recent       recent.Store
	journal      paymentJournal
	events       events.Publisher
	employeeCode string
	logger       *zap.Logger
	reconciler   *payment.Reconciler

	mu       sync.Mutex
	ledger   *cart.Ledger
	member   *domain.MemberInfo
	phone    string
	manual   *domain.ManualDiscount
	inFlight bool
	// pending is the summary of the last created order, written to the
	// recent store when its payment confirms.
	pending *domain.RecentOrder
}

// New wires the controller and its reconciler. opts.OnSettle is replaced.
func New(deps Deps, opts payment.Options) *Service {
	s := &Service{
		catalog:      deps.Catalog,
		customers:    deps.Customers,
		orders:       deps.Orders,
		recent:       deps.Recent,
		journal:      deps.Journal,
		events:       deps.Events,
		employeeCode: deps.EmployeeCode,
		logger:       logging.OrNop(deps.Logger).Named("checkout"),
		ledger:       cart.New(),
	}
	if s.recent == nil {
		s.recent = recent.NewMemoryStore()
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = deps.Logger
	}
	opts.OnSettle = s.settle
	s.reconciler = payment.NewReconciler(deps.Transfers, opts)
	return s
}

// Snapshot recomputes the breakdown from the current inputs.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		Lines:        s.ledger.Lines(),
		Pricing:      pricing.Compute(s.ledger.Lines(), s.member, s.manual),
		Phone:        s.phone,
		PaymentState: s.reconciler.State(),
		Submitting:   s.inFlight,
	}
	if s.member != nil {
		m := *s.member
		snap.Member = &m
	}
	if s.manual != nil {
		d := *s.manual
		snap.ManualDiscount = &d
	}
	return snap
}

// mutableLocked refuses changes to priced inputs while an order is being
// submitted, a payment session is open, or a settled payment has not yet
// cleared the cart.
func (s *Service) mutableLocked() error {
	if s.inFlight {
		return domain.ErrCheckoutInFlight
	}
	if s.reconciler.Busy() {
		return domain.ErrPaymentInProgress
	}
	return nil
}

func (s *Service) AddProduct(ctx context.Context, code string) (Snapshot, error) {
	p, err := s.catalog.Get(ctx, code)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	s.ledger.AddItem(*p)
	return s.snapshotLocked(), nil
}

func (s *Service) UpdateQuantity(code string, qty int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	if err := s.ledger.UpdateQuantity(code, qty); err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(), nil
}

func (s *Service) RemoveItem(code string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	if err := s.ledger.RemoveItem(code); err != nil {
		return Snapshot{}, err
	}
	return s.snapshotLocked(), nil
}

func (s *Service) ClearCart() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	s.ledger.Clear()
	return s.snapshotLocked(), nil
}

// ApplyMemberPhone looks the phone up and, when it belongs to a member,
// applies their discount. The phone is kept either way so the order can
// still be resolved at submission time.
func (s *Service) ApplyMemberPhone(ctx context.Context, phone string) (Snapshot, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Snapshot{}, fmt.Errorf("%w: phone is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	err := s.mutableLocked()
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	member, lookupErr := s.customers.LookupMember(ctx, phone)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	s.phone = phone
	if lookupErr != nil {
		s.member = nil
		if errors.Is(lookupErr, domain.ErrNotFound) {
			return s.snapshotLocked(), domain.ErrNotFound
		}
		s.logger.Warn("member lookup failed", zap.String("phone", phone), zap.Error(lookupErr))
		return s.snapshotLocked(), lookupErr
	}
	s.member = member
	return s.snapshotLocked(), nil
}

func (s *Service) ClearMember() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	s.member = nil
	s.phone = ""
	return s.snapshotLocked(), nil
}

func (s *Service) SetManualDiscount(d domain.ManualDiscount) (Snapshot, error) {
	if err := d.Validate(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	s.manual = &d
	return s.snapshotLocked(), nil
}

func (s *Service) ClearManualDiscount() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	s.manual = nil
	return s.snapshotLocked(), nil
}

// SelectCash opens a cash session when received covers the total.
func (s *Service) SelectCash(received int64) (domain.PaymentSession, error) {
	if received < 0 {
		return domain.PaymentSession{}, fmt.Errorf("%w: received amount must not be negative", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return domain.PaymentSession{}, err
	}
	if s.ledger.Len() == 0 {
		return domain.PaymentSession{}, domain.ErrEmptyCart
	}
	b := pricing.Compute(s.ledger.Lines(), s.member, s.manual)
	return s.reconciler.BeginCash(b.FinalTotal, received)
}

// ConfirmCash submits the order for the open cash session and settles it.
// A submission failure leaves the session and the cart as they were.
func (s *Service) ConfirmCash(ctx context.Context, in CheckoutInput) (payment.Outcome, error) {
	sess, ok := s.reconciler.Current()
	if !ok || sess.State != domain.PaymentAwaitingCashConfirmation {
		return payment.Outcome{}, domain.ErrNoActivePayment
	}
	st, err := s.beginSubmit(false)
	if err != nil {
		return payment.Outcome{}, err
	}
	defer s.endSubmit()

	received := sess.ReceivedAmount
	sub, err := s.submit(ctx, st, domain.PaymentCash, &received, in)
	if err != nil {
		return payment.Outcome{}, err
	}
	return s.reconciler.ConfirmCash(sub.Order)
}

// CheckoutQR submits the order and starts the transfer poll for it.
func (s *Service) CheckoutQR(ctx context.Context, in CheckoutInput) (domain.PaymentSession, error) {
	st, err := s.beginSubmit(true)
	if err != nil {
		return domain.PaymentSession{}, err
	}
	defer s.endSubmit()

	sub, err := s.submit(ctx, st, domain.PaymentQR, nil, in)
	if err != nil {
		return domain.PaymentSession{}, err
	}
	return s.reconciler.StartQR(sub.Order)
}

type submitState struct {
	lines     []domain.CartLineItem
	member    *domain.MemberInfo
	phone     string
	breakdown pricing.Breakdown
}

// beginSubmit takes the in-flight guard and snapshots the priced cart.
// With requireIdle it also refuses while the reconciler is busy; cash
// confirmation submits from inside its own open session. The caller must
// release the guard with endSubmit.
func (s *Service) beginSubmit(requireIdle bool) (submitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return submitState{}, domain.ErrCheckoutInFlight
	}
	if requireIdle && s.reconciler.Busy() {
		return submitState{}, domain.ErrPaymentInProgress
	}
	if s.ledger.Len() == 0 {
		return submitState{}, domain.ErrEmptyCart
	}
	st := submitState{lines: s.ledger.Lines(), phone: s.phone}
	if s.member != nil {
		m := *s.member
		st.member = &m
	}
	st.breakdown = pricing.Compute(st.lines, st.member, s.manual)
	s.inFlight = true
	return st, nil
}

func (s *Service) endSubmit() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Service) submit(ctx context.Context, st submitState, method domain.PaymentMethod, received *int64, in CheckoutInput) (*order.Submission, error) {
	customerCode := s.customers.Resolve(ctx, st.member, st.phone)
	sub, err := s.orders.Submit(ctx, order.SubmitInput{
		Lines:          st.lines,
		Pricing:        st.breakdown,
		CustomerCode:   customerCode,
		Member:         st.member,
		Method:         method,
		ReceivedAmount: received,
		Note:           in.Note,
		Address:        in.Address,
	})
	if err != nil {
		return nil, err
	}
	summary := sub.Recent
	s.mu.Lock()
	s.pending = &summary
	s.mu.Unlock()
	return sub, nil
}

// CancelPayment aborts the open session. The cart is kept.
func (s *Service) CancelPayment() (payment.Outcome, error) {
	return s.reconciler.Cancel()
}

func (s *Service) Payment() PaymentStatus {
	status := PaymentStatus{State: s.reconciler.State()}
	if sess, ok := s.reconciler.Current(); ok {
		status.State = sess.State
		status.Session = &sess
	}
	if last, ok := s.reconciler.Last(); ok {
		status.Last = &last
	}
	return status
}

func (s *Service) RecentOrder(ctx context.Context) (*domain.RecentOrder, error) {
	return s.recent.Get(ctx)
}

// Close stops any running payment poll.
func (s *Service) Close() {
	s.reconciler.Close()
}

// settle applies a terminal outcome. It runs on the goroutine that ended
// the session, never under the reconciler lock.
func (s *Service) settle(out payment.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	sess := out.Session
	amount := sess.Amount
	if out.Order != nil && out.Order.FinalAmount > 0 {
		amount = out.Order.FinalAmount
	}
	log := s.logger.With(
		zap.String("session_id", sess.ID),
		zap.String("order_code", sess.OrderCode),
		zap.String("state", sess.State.String()))

	s.mu.Lock()
	summary := domain.RecentOrder{OrderCode: sess.OrderCode, FinalAmount: amount}
	if s.pending != nil && s.pending.OrderCode == sess.OrderCode {
		summary = *s.pending
		s.pending = nil
	}
	if sess.State == domain.PaymentConfirmed {
		s.ledger.Clear()
		s.member = nil
		s.phone = ""
		s.manual = nil
	}
	s.mu.Unlock()

	if sess.State == domain.PaymentConfirmed {
		if out.Order != nil && out.Order.FinalAmount > 0 {
			summary.FinalAmount = out.Order.FinalAmount
		}
		summary.ConfirmedAt = sess.EndedAt
		if err := s.recent.Set(ctx, summary); err != nil {
			log.Warn("store recent order failed", zap.Error(err))
		}
	}

	if s.journal != nil {
		rec := domain.PaymentRecord{
			SessionID:    sess.ID,
			OrderCode:    sess.OrderCode,
			Method:       sess.Method,
			State:        sess.State,
			Amount:       amount,
			EmployeeCode: s.employeeCode,
			Reason:       out.Reason,
			StartedAt:    sess.StartedAt,
			EndedAt:      sess.EndedAt,
		}
		if err := s.journal.Record(ctx, rec); err != nil {
			log.Warn("journal payment session failed", zap.Error(err))
		}
	}

	evt := events.PaymentSettled{
		SessionID:    sess.ID,
		OrderCode:    sess.OrderCode,
		EmployeeCode: s.employeeCode,
		Method:       sess.Method,
		State:        sess.State,
		Amount:       amount,
		Reason:       out.Reason,
		SettledAt:    sess.EndedAt,
	}
	if err := s.events.PublishPaymentSettled(ctx, evt); err != nil {
		log.Warn("publish payment event failed", zap.Error(err))
	}
}
