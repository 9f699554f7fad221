package domain

import "time"

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQR   PaymentMethod = "qr"
)

// RequiresConfirmation reports whether the method is settled out of band.
func (m PaymentMethod) RequiresConfirmation() bool {
	return m == PaymentQR
}

type OrderDraftItem struct {
	ProductCode   string `json:"productCode"`
	Quantity      int    `json:"quantity"`
	PromotionCode string `json:"promotionCode,omitempty"`
}

// OrderDraft is the payload sent to the order-creation endpoint.
type OrderDraft struct {
	OrderCode           string           `json:"orderCode"`
	CustomerCode        string           `json:"customerCode"`
	EmployeeCode        string           `json:"employeeCode"`
	PaymentMethod       PaymentMethod    `json:"paymentMethod"`
	Details             []OrderDraftItem `json:"details"`
	TotalAmount         int64            `json:"totalAmount"`
	Discount            int64            `json:"discount"`
	FinalAmount         int64            `json:"finalAmount"`
	MemberPromotionCode string           `json:"memberPromotionCode,omitempty"`
	ReceivedAmount      *int64           `json:"receivedAmount,omitempty"`
	Note                string           `json:"note,omitempty"`
	Address             string           `json:"address,omitempty"`
}

type OrderItem struct {
	ProductCode   string `json:"productCode"`
	ProductName   string `json:"productName,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unitPrice"`
	PromotionCode string `json:"promotionCode,omitempty"`
}

// Order is the canonical order record, independent of the response shape
// the backend used to deliver it.
type Order struct {
	OrderCode      string        `json:"orderCode"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	TotalAmount    int64         `json:"totalAmount"`
	FinalAmount    int64         `json:"finalAmount"`
	Discount       int64         `json:"discount"`
	Items          []OrderItem   `json:"items"`
	ReceivedAmount *int64        `json:"receivedAmount,omitempty"`
	Change         *int64        `json:"change,omitempty"`
	Status         string        `json:"status,omitempty"`
}

// RecentOrder is the trimmed summary shared with companion screens.
type RecentOrder struct {
	OrderCode   string    `json:"orderCode"`
	FinalAmount int64     `json:"finalAmount"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}
