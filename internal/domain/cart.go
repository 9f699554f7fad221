package domain

// CartLineItem is one line of the sale in progress. PromotionValue is a
// rate when it is at most 1 and a fixed amount per unit otherwise.
type CartLineItem struct {
	ProductCode       string  `json:"productCode"`
	Title             string  `json:"title,omitempty"`
	UnitPriceOriginal int64   `json:"unitPriceOriginal"`
	Quantity          int     `json:"quantity"`
	PromotionCode     string  `json:"promotionCode,omitempty"`
	PromotionValue    float64 `json:"promotionValue,omitempty"`
}
