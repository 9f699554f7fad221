package domain

// MemberInfo is a customer identity resolved for the current checkout.
// DiscountRate is a fraction, but whole-number percents are tolerated.
type MemberInfo struct {
	CustomerCode        string  `json:"customerCode"`
	Name                string  `json:"name,omitempty"`
	Phone               string  `json:"phone,omitempty"`
	DiscountRate        float64 `json:"discountRate"`
	LoyaltyPoints       int64   `json:"loyaltyPoints"`
	LinkedPromotionCode string  `json:"linkedPromotionCode,omitempty"`
}
