package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/events"
	"bookstore-pos/internal/recent"
	"bookstore-pos/internal/service/customer"
	"bookstore-pos/internal/service/order"
	"bookstore-pos/internal/service/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog map[string]domain.Product

func (c stubCatalog) Get(_ context.Context, code string) (*domain.Product, error) {
	p, ok := c[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type stubPhones map[string]domain.MemberInfo

func (p stubPhones) LookupPhone(_ context.Context, phone string) (*domain.MemberInfo, error) {
	m, ok := p[phone]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

type stubSubmitter struct {
	mu      sync.Mutex
	inputs  []order.SubmitInput
	err     error
	block   chan struct{}
	entered chan struct{}
	code    string
}

func (s *stubSubmitter) Submit(_ context.Context, in order.SubmitInput) (*order.Submission, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, &order.SubmissionError{DraftCode: "POS1", Err: s.err}
	}
	code := s.code
	if code == "" {
		code = "HD001"
	}
	o := &domain.Order{OrderCode: code, PaymentMethod: in.Method, TotalAmount: in.Pricing.OriginalSubtotal, FinalAmount: in.Pricing.FinalTotal}
	return &order.Submission{Order: o, Recent: domain.RecentOrder{OrderCode: code, FinalAmount: o.FinalAmount}}, nil
}

func (s *stubSubmitter) calls() []order.SubmitInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order.SubmitInput(nil), s.inputs...)
}

type stubTransfers struct {
	mu       sync.Mutex
	detected bool
	// When set, GetOrder closes fetching and waits on release before
	// returning canonical.
	fetching  chan struct{}
	release   chan struct{}
	canonical *domain.Order
}

func (s *stubTransfers) HasTransfer(context.Context, string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detected, nil
}

func (s *stubTransfers) GetOrder(context.Context, string) (*domain.Order, error) {
	if s.fetching != nil {
		close(s.fetching)
		<-s.release
	}
	if s.canonical != nil {
		return s.canonical, nil
	}
	return nil, errors.New("unavailable")
}

func (s *stubTransfers) setDetected(v bool) {
	s.mu.Lock()
	s.detected = v
	s.mu.Unlock()
}

type stubJournal struct {
	mu      sync.Mutex
	records []domain.PaymentRecord
}

func (j *stubJournal) Record(_ context.Context, rec domain.PaymentRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *stubJournal) all() []domain.PaymentRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.PaymentRecord(nil), j.records...)
}

type stubEvents struct {
	mu     sync.Mutex
	events []events.PaymentSettled
}

func (e *stubEvents) PublishPaymentSettled(_ context.Context, evt events.PaymentSettled) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	return nil
}

func (e *stubEvents) Close() error { return nil }

func (e *stubEvents) all() []events.PaymentSettled {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]events.PaymentSettled(nil), e.events...)
}

type fixture struct {
	svc       *Service
	submitter *stubSubmitter
	transfers *stubTransfers
	journal   *stubJournal
	events    *stubEvents
	recent    *recent.MemoryStore
}

func newFixture(t *testing.T, window time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		submitter: &stubSubmitter{},
		transfers: &stubTransfers{},
		journal:   &stubJournal{},
		events:    &stubEvents{},
		recent:    recent.NewMemoryStore(),
	}
	catalog := stubCatalog{
		"B001": {Code: "B001", Title: "Tắt Đèn", Price: 100000, PromotionCode: "KM10", PromotionValue: 0.1},
		"B002": {Code: "B002", Title: "Số Đỏ", Price: 50000},
	}
	phones := stubPhones{"0901": {CustomerCode: "KH01", DiscountRate: 0.05}}
	f.svc = New(Deps{
		Catalog:      catalog,
		Customers:    customer.NewResolver(phones, "", nil),
		Orders:       f.submitter,
		Transfers:    f.transfers,
		Recent:       f.recent,
		Journal:      f.journal,
		Events:       f.events,
		EmployeeCode: "NV001",
	}, payment.Options{PollInterval: 5 * time.Millisecond, Window: window})
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) scenarioCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.AddProduct(ctx, "B001")
	require.NoError(t, err)
	snap, err := f.svc.AddProduct(ctx, "B001")
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.EqualValues(t, 200000, snap.Pricing.OriginalSubtotal)
	assert.EqualValues(t, 180000, snap.Pricing.DiscountedSubtotal)

	snap, err = f.svc.ApplyMemberPhone(ctx, "0901")
	require.NoError(t, err)
	assert.EqualValues(t, 9000, snap.Pricing.MemberDiscount)
	assert.EqualValues(t, 171000, snap.Pricing.AfterMember)

	snap, err = f.svc.SetManualDiscount(domain.ManualDiscount{Type: "PERCENT", Value: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 17100, snap.Pricing.ManualDiscount)
	assert.EqualValues(t, 153900, snap.Pricing.FinalTotal)
}

func (f *fixture) waitForOutcome(t *testing.T) payment.Outcome {
	t.Helper()
	var last payment.Outcome
	require.Eventually(t, func() bool {
		st := f.svc.Payment()
		if st.Last == nil || st.State != domain.PaymentIdle {
			return false
		}
		last = *st.Last
		return len(f.events.all()) > 0
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestCashCheckout(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.scenarioCart(t)
	ctx := context.Background()

	_, err := f.svc.SelectCash(100000)
	assert.ErrorIs(t, err, domain.ErrInsufficientCash)
	assert.Empty(t, f.submitter.calls())

	sess, err := f.svc.SelectCash(200000)
	require.NoError(t, err)
	assert.EqualValues(t, 46100, sess.Change)

	out, err := f.svc.ConfirmCash(ctx, CheckoutInput{Note: "bọc quà"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentConfirmed, out.Session.State)

	calls := f.submitter.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "KH01", calls[0].CustomerCode)
	assert.Equal(t, domain.PaymentCash, calls[0].Method)
	require.NotNil(t, calls[0].ReceivedAmount)
	assert.EqualValues(t, 200000, *calls[0].ReceivedAmount)
	assert.Equal(t, "bọc quà", calls[0].Note)

	snap := f.svc.Snapshot()
	assert.Empty(t, snap.Lines)
	assert.Nil(t, snap.Member)
	assert.Nil(t, snap.ManualDiscount)
	assert.Empty(t, snap.Phone)
	assert.Equal(t, domain.PaymentIdle, snap.PaymentState)

	got, err := f.svc.RecentOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "HD001", got.OrderCode)
	assert.EqualValues(t, 153900, got.FinalAmount)

	records := f.journal.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.PaymentConfirmed, records[0].State)
	assert.Equal(t, "NV001", records[0].EmployeeCode)
	require.Len(t, f.events.all(), 1)
}

func TestEmptyCartIsRefusedBeforeSubmission(t *testing.T) {
	f := newFixture(t, time.Minute)

	_, err := f.svc.SelectCash(1000)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	_, err = f.svc.CheckoutQR(context.Background(), CheckoutInput{})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	_, err = f.svc.ConfirmCash(context.Background(), CheckoutInput{})
	assert.ErrorIs(t, err, domain.ErrNoActivePayment)
	assert.Empty(t, f.submitter.calls())
}

func TestSubmissionFailureKeepsCart(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.scenarioCart(t)
	f.submitter.err = errors.New("backend down")

	_, err := f.svc.SelectCash(200000)
	require.NoError(t, err)
	_, err = f.svc.ConfirmCash(context.Background(), CheckoutInput{})
	var subErr *order.SubmissionError
	require.ErrorAs(t, err, &subErr)

	snap := f.svc.Snapshot()
	assert.Len(t, snap.Lines, 1)
	assert.NotNil(t, snap.Member)
	assert.NotNil(t, snap.ManualDiscount)
	assert.Equal(t, domain.PaymentAwaitingCashConfirmation, snap.PaymentState)
	assert.False(t, snap.Submitting)

	out, err := f.svc.CancelPayment()
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCancelled, out.Session.State)
	assert.Len(t, f.svc.Snapshot().Lines, 1)
	require.Len(t, f.journal.all(), 1)
	assert.Equal(t, domain.PaymentCancelled, f.journal.all()[0].State)
}

func TestSecondCheckoutWhileInFlightIsRefused(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.scenarioCart(t)
	f.submitter.block = make(chan struct{})
	f.submitter.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.CheckoutQR(context.Background(), CheckoutInput{})
		done <- err
	}()
	<-f.submitter.entered

	_, err := f.svc.CheckoutQR(context.Background(), CheckoutInput{})
	assert.ErrorIs(t, err, domain.ErrCheckoutInFlight)
	_, err = f.svc.AddProduct(context.Background(), "B002")
	assert.ErrorIs(t, err, domain.ErrCheckoutInFlight)
	assert.True(t, f.svc.Snapshot().Submitting)

	close(f.submitter.block)
	require.NoError(t, <-done)
	assert.Len(t, f.submitter.calls(), 1)
	assert.Equal(t, domain.PaymentAwaitingQR, f.svc.Payment().State)
}

func TestQRCheckoutConfirmed(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.scenarioCart(t)

	sess, err := f.svc.CheckoutQR(context.Background(), CheckoutInput{})
	require.NoError(t, err)
	assert.Equal(t, "HD001", sess.OrderCode)
	assert.EqualValues(t, 153900, sess.Amount)

	_, err = f.svc.AddProduct(context.Background(), "B002")
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	_, err = f.svc.CheckoutQR(context.Background(), CheckoutInput{})
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)

	f.transfers.setDetected(true)
	out := f.waitForOutcome(t)
	assert.Equal(t, domain.PaymentConfirmed, out.Session.State)
	require.NotNil(t, out.Order)
	assert.Equal(t, "HD001", out.Order.OrderCode)

	assert.Empty(t, f.svc.Snapshot().Lines)
	got, err := f.svc.RecentOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HD001", got.OrderCode)
}

func TestQRConfirmationLocksCartUntilSettled(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.scenarioCart(t)
	f.transfers.fetching = make(chan struct{})
	f.transfers.release = make(chan struct{})
	f.transfers.canonical = &domain.Order{OrderCode: "HD001", PaymentMethod: domain.PaymentQR, FinalAmount: 150000}
	ctx := context.Background()

	_, err := f.svc.CheckoutQR(ctx, CheckoutInput{})
	require.NoError(t, err)
	f.transfers.setDetected(true)

	select {
	case <-f.transfers.fetching:
	case <-time.After(2 * time.Second):
		t.Fatalf("canonical order was never fetched")
	}

	snap := f.svc.Snapshot()
	assert.Len(t, snap.Lines, 1)
	assert.Equal(t, domain.PaymentConfirmed, snap.PaymentState)

	_, err = f.svc.CheckoutQR(ctx, CheckoutInput{})
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	_, err = f.svc.SelectCash(200000)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	_, err = f.svc.AddProduct(ctx, "B002")
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	_, err = f.svc.ClearMember()
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	assert.Len(t, f.submitter.calls(), 1)

	close(f.transfers.release)
	out := f.waitForOutcome(t)
	assert.Equal(t, domain.PaymentConfirmed, out.Session.State)

	snap = f.svc.Snapshot()
	assert.Empty(t, snap.Lines)
	assert.Nil(t, snap.Member)
	assert.Equal(t, domain.PaymentIdle, snap.PaymentState)

	got, err := f.svc.RecentOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "HD001", got.OrderCode)
	assert.EqualValues(t, 150000, got.FinalAmount)
	assert.False(t, got.ConfirmedAt.IsZero())

	_, err = f.svc.AddProduct(ctx, "B002")
	assert.NoError(t, err)
}

func TestCloseWaitsForSettledConfirmation(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.scenarioCart(t)
	f.transfers.fetching = make(chan struct{})
	f.transfers.release = make(chan struct{})

	_, err := f.svc.CheckoutQR(context.Background(), CheckoutInput{})
	require.NoError(t, err)
	f.transfers.setDetected(true)
	<-f.transfers.fetching

	closed := make(chan struct{})
	go func() {
		f.svc.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatalf("Close returned before the confirmation was journaled")
	case <-time.After(30 * time.Millisecond):
	}

	close(f.transfers.release)
	<-closed
	records := f.journal.all()
	require.Len(t, records, 1)
	assert.Equal(t, domain.PaymentConfirmed, records[0].State)
	require.Len(t, f.events.all(), 1)
}

func TestUnconfirmedSaleKeepsPreviousRecentOrder(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, "B002")
	require.NoError(t, err)
	_, err = f.svc.SelectCash(50000)
	require.NoError(t, err)
	_, err = f.svc.ConfirmCash(ctx, CheckoutInput{})
	require.NoError(t, err)

	f.submitter.code = "HD002"
	_, err = f.svc.AddProduct(ctx, "B001")
	require.NoError(t, err)
	_, err = f.svc.CheckoutQR(ctx, CheckoutInput{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(f.events.all()) == 2 }, 2*time.Second, 5*time.Millisecond)

	got, err := f.svc.RecentOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "HD001", got.OrderCode)
	assert.EqualValues(t, 50000, got.FinalAmount)
}

func TestQRCheckoutExpiredKeepsCart(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.scenarioCart(t)

	_, err := f.svc.CheckoutQR(context.Background(), CheckoutInput{})
	require.NoError(t, err)

	out := f.waitForOutcome(t)
	assert.Equal(t, domain.PaymentExpired, out.Session.State)
	assert.Equal(t, payment.ReasonExpired, out.Reason)
	assert.Len(t, f.svc.Snapshot().Lines, 1)

	_, err = f.svc.RecentOrder(context.Background())
	assert.ErrorIs(t, err, recent.ErrNoRecentOrder)

	evts := f.events.all()
	require.Len(t, evts, 1)
	assert.Equal(t, domain.PaymentExpired, evts[0].State)
	assert.Equal(t, "payment window expired", evts[0].Reason)

	_, err = f.svc.AddProduct(context.Background(), "B002")
	assert.NoError(t, err)
}

func TestUnknownPhoneFallsBackToGuest(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	_, err := f.svc.AddProduct(ctx, "B002")
	require.NoError(t, err)

	snap, err := f.svc.ApplyMemberPhone(ctx, "0999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "0999", snap.Phone)
	assert.Nil(t, snap.Member)

	_, err = f.svc.SelectCash(50000)
	require.NoError(t, err)
	_, err = f.svc.ConfirmCash(ctx, CheckoutInput{})
	require.NoError(t, err)

	calls := f.submitter.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, customer.DefaultGuestCode, calls[0].CustomerCode)
}

func TestCartEdits(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	_, err := f.svc.AddProduct(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.AddProduct(ctx, "B001")
	require.NoError(t, err)
	_, err = f.svc.AddProduct(ctx, "B002")
	require.NoError(t, err)

	snap, err := f.svc.UpdateQuantity("B002", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Lines[1].Quantity)

	snap, err = f.svc.UpdateQuantity("B002", 0)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1)

	_, err = f.svc.RemoveItem("B002")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SetManualDiscount(domain.ManualDiscount{Type: "bogus", Value: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	snap, err = f.svc.SetManualDiscount(domain.ManualDiscount{Type: domain.ManualDiscountFixed, Value: 1000000})
	require.NoError(t, err)
	assert.Zero(t, snap.Pricing.FinalTotal)

	snap, err = f.svc.ClearManualDiscount()
	require.NoError(t, err)
	assert.EqualValues(t, 90000, snap.Pricing.FinalTotal)

	snap, err = f.svc.ClearCart()
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
	assert.Zero(t, snap.Pricing.FinalTotal)
}
