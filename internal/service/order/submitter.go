// Package order turns a priced cart into a backend order.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/logging"
	"bookstore-pos/internal/pricing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMissingOrderCode is wrapped when the backend accepted the request but
// its response carries no order identifier.
var ErrMissingOrderCode = errors.New("order response has no order code")

// SubmissionError reports a failed checkout. The cart is left as it was.
type SubmissionError struct {
	DraftCode string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit order %s: %v", e.DraftCode, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

type orderCreator interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)
}

type SubmitInput struct {
	Lines          []domain.CartLineItem
	Pricing        pricing.Breakdown
	CustomerCode   string
	Member         *domain.MemberInfo
	Method         domain.PaymentMethod
	ReceivedAmount *int64
	Note           string
	Address        string
}

// Submission is a created order. Recent is the summary to publish once the
// payment for it is confirmed; ConfirmedAt is left zero.
type Submission struct {
	Order  *domain.Order
	Draft  domain.OrderDraft
	Recent domain.RecentOrder
}

type Submitter struct {
	creator      orderCreator
	employeeCode string
	logger       *zap.Logger
	now          func() time.Time
}

func NewSubmitter(creator orderCreator, employeeCode string, logger *zap.Logger) *Submitter {
	return &Submitter{
		creator:      creator,
		employeeCode: employeeCode,
		logger:       logging.OrNop(logger).Named("order"),
		now:          time.Now,
	}
}

// NewDraftCode returns a client-side order token of the form
// POS<unix-ms><4 hex>.
func NewDraftCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("POS%d%s", now.UnixMilli(), suffix)
}

// BuildDraft assembles the creation payload without sending it.
func (s *Submitter) BuildDraft(in SubmitInput) domain.OrderDraft {
	draft := domain.OrderDraft{
		OrderCode:     NewDraftCode(s.now()),
		CustomerCode:  in.CustomerCode,
		EmployeeCode:  s.employeeCode,
		PaymentMethod: in.Method,
		TotalAmount:   in.Pricing.OriginalSubtotal,
		Discount:      in.Pricing.TotalDiscount(),
		FinalAmount:   in.Pricing.FinalTotal,
		Note:          strings.TrimSpace(in.Note),
		Address:       strings.TrimSpace(in.Address),
	}
	if in.Member != nil {
		draft.MemberPromotionCode = in.Member.LinkedPromotionCode
	}
	if in.Method == domain.PaymentCash && in.ReceivedAmount != nil {
		received := *in.ReceivedAmount
		draft.ReceivedAmount = &received
	}
	draft.Details = make([]domain.OrderDraftItem, 0, len(in.Lines))
	for _, line := range in.Lines {
		draft.Details = append(draft.Details, domain.OrderDraftItem{
			ProductCode:   line.ProductCode,
			Quantity:      line.Quantity,
			PromotionCode: line.PromotionCode,
		})
	}
	return draft
}

// Submit sends the order once and returns the canonical order. Any failure
// is a *SubmissionError.
func (s *Submitter) Submit(ctx context.Context, in SubmitInput) (*Submission, error) {
	if len(in.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	draft := s.BuildDraft(in)
	log := s.logger.With(zap.String("draft_code", draft.OrderCode), zap.String("method", string(draft.PaymentMethod)))

	order, err := s.creator.CreateOrder(ctx, draft)
	if err != nil {
		log.Error("create order failed", zap.Error(err))
		return nil, &SubmissionError{DraftCode: draft.OrderCode, Err: err}
	}
	if order == nil || strings.TrimSpace(order.OrderCode) == "" {
		log.Error("create order returned no order code")
		return nil, &SubmissionError{DraftCode: draft.OrderCode, Err: ErrMissingOrderCode}
	}
	fillFromDraft(order, draft, in)

	log.Info("order created",
		zap.String("order_code", order.OrderCode),
		zap.Int64("final_amount", order.FinalAmount))

	return &Submission{
		Order: order,
		Draft: draft,
		Recent: domain.RecentOrder{
			OrderCode:   order.OrderCode,
			FinalAmount: order.FinalAmount,
		},
	}, nil
}

// fillFromDraft completes fields the backend left out with the locally
// computed values.
func fillFromDraft(o *domain.Order, draft domain.OrderDraft, in SubmitInput) {
	if o.PaymentMethod == "" {
		o.PaymentMethod = draft.PaymentMethod
	}
	if o.TotalAmount == 0 {
		o.TotalAmount = draft.TotalAmount
	}
	if o.FinalAmount == 0 {
		o.FinalAmount = draft.FinalAmount
	}
	if o.Discount == 0 {
		o.Discount = draft.Discount
	}
	if len(o.Items) == 0 {
		for _, line := range in.Lines {
			o.Items = append(o.Items, domain.OrderItem{
				ProductCode:   line.ProductCode,
				ProductName:   line.Title,
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPriceOriginal,
				PromotionCode: line.PromotionCode,
			})
		}
	}
	if o.PaymentMethod == domain.PaymentCash && draft.ReceivedAmount != nil {
		if o.ReceivedAmount == nil {
			received := *draft.ReceivedAmount
			o.ReceivedAmount = &received
		}
		if o.Change == nil {
			change := *o.ReceivedAmount - o.FinalAmount
			o.Change = &change
		}
	}
}
