package customer

import (
	"context"
	"strings"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/logging"
	"go.uber.org/zap"
)

// DefaultGuestCode is used for walk-in sales without a known customer.
const DefaultGuestCode = "KHVL"

type phoneLookup interface {
	LookupPhone(ctx context.Context, phone string) (*domain.MemberInfo, error)
}

// Resolver decides which customer code an order is submitted under.
type Resolver struct {
	lookup    phoneLookup
	guestCode string
	logger    *zap.Logger
}

func NewResolver(lookup phoneLookup, guestCode string, logger *zap.Logger) *Resolver {
	if guestCode == "" {
		guestCode = DefaultGuestCode
	}
	return &Resolver{
		lookup:    lookup,
		guestCode: guestCode,
		logger:    logging.OrNop(logger).Named("customer"),
	}
}

// GuestCode returns the code used when no customer can be resolved.
func (r *Resolver) GuestCode() string {
	return r.guestCode
}

// Resolve picks the member's code, then a phone lookup, then the guest code.
// Lookup failures are logged and never returned.
func (r *Resolver) Resolve(ctx context.Context, member *domain.MemberInfo, phone string) string {
	if member != nil && strings.TrimSpace(member.CustomerCode) != "" {
		return strings.TrimSpace(member.CustomerCode)
	}
	phone = strings.TrimSpace(phone)
	if phone == "" || r.lookup == nil {
		return r.guestCode
	}
	info, err := r.lookup.LookupPhone(ctx, phone)
	if err != nil {
		r.logger.Warn("phone lookup failed, using guest code",
			zap.String("phone", phone),
			zap.String("guest_code", r.guestCode),
			zap.Error(err))
		return r.guestCode
	}
	if info == nil || strings.TrimSpace(info.CustomerCode) == "" {
		r.logger.Warn("phone lookup returned no customer code, using guest code", zap.String("phone", phone))
		return r.guestCode
	}
	return strings.TrimSpace(info.CustomerCode)
}

// LookupMember fetches member details for discount prefill. Unlike Resolve it
// reports failures, including domain.ErrNotFound.
func (r *Resolver) LookupMember(ctx context.Context, phone string) (*domain.MemberInfo, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, domain.ErrNotFound
	}
	if r.lookup == nil {
		return nil, domain.ErrNotFound
	}
	info, err := r.lookup.LookupPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if info == nil || info.CustomerCode == "" {
		return nil, domain.ErrNotFound
	}
	if info.Phone == "" {
		info.Phone = phone
	}
	return info, nil
}
