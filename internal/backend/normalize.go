package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"bookstore-pos/internal/domain"
)

// Field precedence for backend payloads. The first key present wins.
var (
	orderCodeKeys     = []string{"orderCode", "code", "id"}
	totalAmountKeys   = []string{"totalAmount", "total"}
	finalAmountKeys   = []string{"finalAmount", "total"}
	discountKeys      = []string{"discount", "discountAmount"}
	itemListKeys      = []string{"details", "items"}
	itemPriceKeys     = []string{"importPrice", "unitPrice", "price"}
	itemNameKeys      = []string{"productName", "title", "name"}
	memberCodeKeys    = []string{"customerCode", "code", "id"}
	memberNameKeys    = []string{"fullName", "name"}
	memberRateKeys    = []string{"discountRate", "memberDiscount", "discount"}
	memberPointKeys   = []string{"loyaltyPoints", "points"}
	memberPromoKeys   = []string{"linkedPromotionCode", "promotionCode"}
	paymentMethodKeys = []string{"paymentMethod", "method"}
)

var errNotObject = errors.New("payload is not an object")

func decode(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// unwrap returns the payload root: data.data, then data, then the body.
func unwrap(body any) any {
	m, ok := body.(map[string]any)
	if !ok {
		return body
	}
	data, ok := m["data"]
	if !ok || data == nil {
		return body
	}
	if inner, ok := data.(map[string]any); ok {
		if nested, ok := inner["data"]; ok && nested != nil {
			return nested
		}
	}
	return data
}

// NormalizeOrder maps any of the backend's order response shapes onto the
// canonical order.
func NormalizeOrder(body []byte) (*domain.Order, error) {
	raw, err := decode(body)
	if err != nil {
		return nil, err
	}
	m, ok := unwrap(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("order: %w", errNotObject)
	}

	o := &domain.Order{
		OrderCode:     firstString(m, orderCodeKeys...),
		PaymentMethod: parseMethod(firstString(m, paymentMethodKeys...)),
		TotalAmount:   firstInt(m, totalAmountKeys...),
		FinalAmount:   firstInt(m, finalAmountKeys...),
		Discount:      firstInt(m, discountKeys...),
		Status:        firstString(m, "status", "orderStatus"),
	}
	if v, ok := lookupInt(m, "receivedAmount"); ok {
		o.ReceivedAmount = &v
	}
	if v, ok := lookupInt(m, "change", "changeAmount"); ok {
		o.Change = &v
	}

	for _, raw := range firstList(m, itemListKeys...) {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		o.Items = append(o.Items, normalizeItem(item))
	}
	return o, nil
}

func normalizeItem(m map[string]any) domain.OrderItem {
	item := domain.OrderItem{
		ProductCode:   firstString(m, "productCode"),
		ProductName:   firstString(m, itemNameKeys...),
		Quantity:      int(firstInt(m, "quantity")),
		UnitPrice:     firstInt(m, itemPriceKeys...),
		PromotionCode: firstString(m, "promotionCode"),
	}
	if product, ok := m["product"].(map[string]any); ok {
		if item.ProductCode == "" {
			item.ProductCode = firstString(product, "productCode", "code")
		}
		if item.ProductName == "" {
			item.ProductName = firstString(product, itemNameKeys...)
		}
		if _, ok := lookupInt(m, itemPriceKeys...); !ok {
			item.UnitPrice = firstInt(product, itemPriceKeys...)
		}
	}
	return item
}

// NormalizeMember maps a phone lookup response onto MemberInfo. A list
// payload resolves to its first entry.
func NormalizeMember(body []byte) (*domain.MemberInfo, error) {
	raw, err := decode(body)
	if err != nil {
		return nil, err
	}
	root := unwrap(raw)
	if list, ok := root.([]any); ok {
		if len(list) == 0 {
			return nil, domain.ErrNotFound
		}
		root = list[0]
	}
	m, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("member: %w", errNotObject)
	}
	if customer, ok := m["customer"].(map[string]any); ok {
		m = customer
	}

	info := &domain.MemberInfo{
		CustomerCode:        firstString(m, memberCodeKeys...),
		Name:                firstString(m, memberNameKeys...),
		Phone:               firstString(m, "phone", "phoneNumber"),
		DiscountRate:        firstFloat(m, memberRateKeys...),
		LoyaltyPoints:       firstInt(m, memberPointKeys...),
		LinkedPromotionCode: firstString(m, memberPromoKeys...),
	}
	if info.CustomerCode == "" {
		return nil, domain.ErrNotFound
	}
	return info, nil
}

// TransferDetected reports whether a transfer-status response carries a
// matching payment: any non-empty, non-false payload counts.
func TransferDetected(body []byte) (bool, error) {
	raw, err := decode(body)
	if err != nil {
		return false, err
	}
	// An envelope with an explicit null data field carries no transfer.
	if m, ok := raw.(map[string]any); ok {
		if data, present := m["data"]; present {
			if inner, ok := data.(map[string]any); ok {
				if nested, present := inner["data"]; present {
					return truthy(nested), nil
				}
			}
			return truthy(data), nil
		}
	}
	return truthy(raw), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func parseMethod(s string) domain.PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash", "tien_mat":
		return domain.PaymentCash
	case "qr", "transfer", "bank_transfer", "banking":
		return domain.PaymentQR
	default:
		return domain.PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

func firstInt(m map[string]any, keys ...string) int64 {
	v, _ := lookupInt(m, keys...)
	return v
}

func lookupInt(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		if f, ok := toFloat(m[k]); ok {
			return int64(math.Round(f)), true
		}
	}
	return 0, false
}

func firstFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if f, ok := toFloat(m[k]); ok {
			return f
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func firstList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if list, ok := m[k].([]any); ok {
			return list
		}
	}
	return nil
}
