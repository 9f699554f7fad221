package cart

import (
	"testing"

	"bookstore-pos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(code string, price int64) domain.Product {
	return domain.Product{Code: code, Title: "Book " + code, Price: price}
}

func TestAddItem_AppendsThenIncrements(t *testing.T) {
	l := New()
	l.AddItem(book("B1", 100000))
	l.AddItem(book("B2", 50000))
	l.AddItem(book("B1", 100000))

	lines := l.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "B1", lines[0].ProductCode)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, int64(100000), lines[0].UnitPriceOriginal)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestAddItem_CopiesPromotion(t *testing.T) {
	l := New()
	l.AddItem(domain.Product{Code: "B1", Price: 100000, PromotionCode: "KM10", PromotionValue: 0.1})

	line := l.Lines()[0]
	assert.Equal(t, "KM10", line.PromotionCode)
	assert.Equal(t, 0.1, line.PromotionValue)
}

func TestUpdateQuantity(t *testing.T) {
	l := New()
	l.AddItem(book("B1", 100))

	require.NoError(t, l.UpdateQuantity("B1", 5))
	assert.Equal(t, 5, l.Lines()[0].Quantity)

	require.NoError(t, l.UpdateQuantity("B1", 0))
	assert.Equal(t, 0, l.Len())

	l.AddItem(book("B2", 100))
	require.NoError(t, l.UpdateQuantity("B2", -3))
	assert.Equal(t, 0, l.Len())
}

func TestUpdateQuantity_UnknownCode(t *testing.T) {
	l := New()
	assert.ErrorIs(t, l.UpdateQuantity("missing", 1), domain.ErrNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	l := New()
	l.AddItem(book("B1", 100))
	l.AddItem(book("B2", 100))
	l.AddItem(book("B3", 100))

	require.NoError(t, l.RemoveItem("B2"))
	lines := l.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "B1", lines[0].ProductCode)
	assert.Equal(t, "B3", lines[1].ProductCode)
	assert.ErrorIs(t, l.RemoveItem("B2"), domain.ErrNotFound)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Lines())
}

func TestLines_ReturnsCopy(t *testing.T) {
	l := New()
	l.AddItem(book("B1", 100))

	lines := l.Lines()
	lines[0].Quantity = 99

	assert.Equal(t, 1, l.Lines()[0].Quantity)
}

func TestLedger_NeverHoldsNonPositiveQuantity(t *testing.T) {
	l := New()
	for i, qty := range []int{3, 0, -1, 2, 0} {
		l.AddItem(book("B1", 100))
		_ = l.UpdateQuantity("B1", qty)
		for _, line := range l.Lines() {
			if line.Quantity <= 0 {
				t.Fatalf("step %d: observed line with quantity %d", i, line.Quantity)
			}
		}
	}
}
