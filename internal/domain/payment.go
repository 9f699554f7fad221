package domain

import "time"

type PaymentState string

const (
	PaymentIdle                     PaymentState = "Idle"
	PaymentAwaitingCashConfirmation PaymentState = "AwaitingCashConfirmation"
	PaymentAwaitingQR               PaymentState = "AwaitingQRPayment"
	PaymentConfirmed                PaymentState = "Confirmed"
	PaymentExpired                  PaymentState = "Expired"
	PaymentCancelled                PaymentState = "Cancelled"
)

func (s PaymentState) IsTerminal() bool {
	return s == PaymentConfirmed || s == PaymentExpired || s == PaymentCancelled
}

func (s PaymentState) IsAwaiting() bool {
	return s == PaymentAwaitingCashConfirmation || s == PaymentAwaitingQR
}

func (s PaymentState) String() string {
	return string(s)
}

// PaymentSession describes one outstanding or settled payment attempt.
type PaymentSession struct {
	ID             string        `json:"id"`
	OrderCode      string        `json:"orderCode,omitempty"`
	Method         PaymentMethod `json:"method"`
	State          PaymentState  `json:"state"`
	Amount         int64         `json:"amount"`
	ReceivedAmount int64         `json:"receivedAmount,omitempty"`
	Change         int64         `json:"change,omitempty"`
	QRImageURL     string        `json:"qrImageUrl,omitempty"`
	StartedAt      time.Time     `json:"startedAt"`
	Deadline       time.Time     `json:"deadline,omitempty"`
	EndedAt        time.Time     `json:"endedAt,omitempty"`
}

// PaymentRecord is the journal row written for every settled session.
type PaymentRecord struct {
	SessionID    string        `json:"sessionId"`
	OrderCode    string        `json:"orderCode"`
	Method       PaymentMethod `json:"method"`
	State        PaymentState  `json:"state"`
	Amount       int64         `json:"amount"`
	EmployeeCode string        `json:"employeeCode"`
	Reason       string        `json:"reason,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	EndedAt      time.Time     `json:"endedAt"`
}
