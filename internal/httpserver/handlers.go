package httpserver

import (
	"net/http"
	"strconv"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/service/checkout"
	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductCode string `json:"productCode" binding:"required"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type memberRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type cashRequest struct {
	ReceivedAmount *int64 `json:"receivedAmount" binding:"required"`
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (h *handlers) listProducts(c *gin.Context) {
	products, err := h.deps.Catalog.List(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 0))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"results": products, "count": len(products)})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Catalog.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) snapshot(c *gin.Context, snap checkout.Snapshot, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	if snap.Lines == nil {
		snap.Lines = []domain.CartLineItem{}
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) getCart(c *gin.Context) {
	h.snapshot(c, h.deps.Checkout.Snapshot(), nil)
}

func (h *handlers) clearCart(c *gin.Context) {
	snap, err := h.deps.Checkout.ClearCart()
	h.snapshot(c, snap, err)
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.deps.Checkout.AddProduct(c.Request.Context(), req.ProductCode)
	h.snapshot(c, snap, err)
}

func (h *handlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.deps.Checkout.UpdateQuantity(c.Param("code"), *req.Quantity)
	h.snapshot(c, snap, err)
}

func (h *handlers) removeItem(c *gin.Context) {
	snap, err := h.deps.Checkout.RemoveItem(c.Param("code"))
	h.snapshot(c, snap, err)
}

func (h *handlers) applyMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.deps.Checkout.ApplyMemberPhone(c.Request.Context(), req.Phone)
	h.snapshot(c, snap, err)
}

func (h *handlers) clearMember(c *gin.Context) {
	snap, err := h.deps.Checkout.ClearMember()
	h.snapshot(c, snap, err)
}

func (h *handlers) setDiscount(c *gin.Context) {
	var req domain.ManualDiscount
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.deps.Checkout.SetManualDiscount(req)
	h.snapshot(c, snap, err)
}

func (h *handlers) clearDiscount(c *gin.Context) {
	snap, err := h.deps.Checkout.ClearManualDiscount()
	h.snapshot(c, snap, err)
}

func (h *handlers) selectCash(c *gin.Context) {
	var req cashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.deps.Checkout.SelectCash(*req.ReceivedAmount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func bindCheckoutInput(c *gin.Context) (checkout.CheckoutInput, bool) {
	var in checkout.CheckoutInput
	if c.Request.ContentLength == 0 {
		return in, true
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return in, false
	}
	return in, true
}

func (h *handlers) confirmCash(c *gin.Context) {
	in, ok := bindCheckoutInput(c)
	if !ok {
		return
	}
	out, err := h.deps.Checkout.ConfirmCash(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handlers) checkoutQR(c *gin.Context) {
	in, ok := bindCheckoutInput(c)
	if !ok {
		return
	}
	sess, err := h.deps.Checkout.CheckoutQR(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, sess)
}

func (h *handlers) currentPayment(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Checkout.Payment())
}

func (h *handlers) cancelPayment(c *gin.Context) {
	out, err := h.deps.Checkout.CancelPayment()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) paymentHistory(c *gin.Context) {
	if h.deps.History == nil {
		c.JSON(http.StatusOK, gin.H{"results": []domain.PaymentRecord{}, "count": 0})
		return
	}
	records, err := h.deps.History.ListRecent(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": records, "count": len(records)})
}

func (h *handlers) recentOrder(c *gin.Context) {
	o, err := h.deps.Checkout.RecentOrder(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
