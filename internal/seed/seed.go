package seed

import (
	"context"
	"fmt"

	"bookstore-pos/internal/domain"
)

type ProductWriter interface {
	Save(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// DemoBooks is a small catalog for trying the terminal by hand. Promotions
// cover a rate, a fixed amount and a full discount.
var DemoBooks = []domain.Product{
	{Code: "B001", Title: "Dế Mèn Phiêu Lưu Ký", Author: "Tô Hoài", Price: 100000, PromotionCode: "KM10", PromotionValue: 0.1},
	{Code: "B002", Title: "Số Đỏ", Author: "Vũ Trọng Phụng", Price: 90000, PromotionCode: "GIAM5K", PromotionValue: 5000},
	{Code: "B003", Title: "Tắt Đèn", Author: "Ngô Tất Tố", Price: 75000},
	{Code: "B004", Title: "Chí Phèo", Author: "Nam Cao", Price: 60000},
	{Code: "B005", Title: "Nhật Ký Trong Tù", Author: "Hồ Chí Minh", Price: 45000, PromotionCode: "TANG", PromotionValue: 1},
}

// Apply upserts the demo catalog. It is idempotent.
func Apply(ctx context.Context, w ProductWriter) (int, error) {
	for i, p := range DemoBooks {
		if _, err := w.Save(ctx, p); err != nil {
			return i, fmt.Errorf("upsert book %s: %w", p.Code, err)
		}
	}
	return len(DemoBooks), nil
}
