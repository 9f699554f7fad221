package httpserver

import (
	"context"
	"errors"
	"time"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/service/checkout"
	"bookstore-pos/internal/service/payment"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type catalogService interface {
	List(ctx context.Context, query string, limit int) ([]domain.Product, error)
	Get(ctx context.Context, code string) (*domain.Product, error)
}

type checkoutService interface {
	Snapshot() checkout.Snapshot
	AddProduct(ctx context.Context, code string) (checkout.Snapshot, error)
	UpdateQuantity(code string, qty int) (checkout.Snapshot, error)
	RemoveItem(code string) (checkout.Snapshot, error)
	ClearCart() (checkout.Snapshot, error)
	ApplyMemberPhone(ctx context.Context, phone string) (checkout.Snapshot, error)
	ClearMember() (checkout.Snapshot, error)
	SetManualDiscount(d domain.ManualDiscount) (checkout.Snapshot, error)
	ClearManualDiscount() (checkout.Snapshot, error)
	SelectCash(received int64) (domain.PaymentSession, error)
	ConfirmCash(ctx context.Context, in checkout.CheckoutInput) (payment.Outcome, error)
	CheckoutQR(ctx context.Context, in checkout.CheckoutInput) (domain.PaymentSession, error)
	CancelPayment() (payment.Outcome, error)
	Payment() checkout.PaymentStatus
	RecentOrder(ctx context.Context) (*domain.RecentOrder, error)
}

type paymentHistory interface {
	ListRecent(ctx context.Context, limit int) ([]domain.PaymentRecord, error)
}

type readinessProbe interface {
	Ready(ctx context.Context) error
}

// Deps are the services behind the routes. History and Backend may be nil.
type Deps struct {
	Catalog     catalogService
	Checkout    checkoutService
	History     paymentHistory
	Backend     readinessProbe
	CORSOrigins []string
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Catalog == nil || deps.Checkout == nil {
		return nil, errors.New("httpserver: catalog and checkout services are required")
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db, deps.Backend))

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api")

	api.GET("/products", h.listProducts)
	api.GET("/products/:code", h.getProduct)

	api.GET("/cart", h.getCart)
	api.DELETE("/cart", h.clearCart)
	api.POST("/cart/items", h.addItem)
	api.PATCH("/cart/items/:code", h.updateItem)
	api.DELETE("/cart/items/:code", h.removeItem)

	api.PUT("/checkout/member", h.applyMember)
	api.DELETE("/checkout/member", h.clearMember)
	api.PUT("/checkout/discount", h.setDiscount)
	api.DELETE("/checkout/discount", h.clearDiscount)
	api.POST("/checkout/cash", h.selectCash)
	api.POST("/checkout/cash/confirm", h.confirmCash)
	api.POST("/checkout/qr", h.checkoutQR)

	api.GET("/payments/current", h.currentPayment)
	api.POST("/payments/current/cancel", h.cancelPayment)
	api.GET("/payments/history", h.paymentHistory)
	api.GET("/orders/recent", h.recentOrder)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
