package payment

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// QRConfig identifies the receiving bank account rendered into QR images.
type QRConfig struct {
	BaseURL     string
	BankID      string
	Account     string
	AccountName string
}

// QRImageURL builds the image URL for a transfer of amount to the configured
// account. The order code is the transfer description, which is what the
// bank-side matching keys on.
func QRImageURL(cfg QRConfig, amount int64, orderCode string) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" || cfg.BankID == "" || cfg.Account == "" {
		return ""
	}
	q := url.Values{}
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("addInfo", orderCode)
	if cfg.AccountName != "" {
		q.Set("accountName", cfg.AccountName)
	}
	path := fmt.Sprintf("%s-%s-compact2.png", url.PathEscape(cfg.BankID), url.PathEscape(cfg.Account))
	return base + "/" + path + "?" + q.Encode()
}
