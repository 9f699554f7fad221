package domain

import "time"

// Product is a catalog book as the terminal sees it.
type Product struct {
	ID             string    `json:"id"`
	Code           string    `json:"productCode"`
	Title          string    `json:"title"`
	Author         string    `json:"author,omitempty"`
	Price          int64     `json:"price"`
	PromotionCode  string    `json:"promotionCode,omitempty"`
	PromotionValue float64   `json:"promotionValue,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
