package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kiendrone/storefront/internal/infrastructure/logger"
	"github.com/kiendrone/storefront/internal/interfaces/http/handler"
	"github.com/kiendrone/storefront/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers are the endpoint handlers the API serves
type Handlers struct {
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Health   *handler.HealthHandler
}

// Config controls the engine's middleware chain
type Config struct {
	Logger         *zap.Logger
	Verifier       middleware.TokenVerifier
	Tracing        middleware.TracingConfig
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	TrustedProxies []string
	// HTTPMetrics is optional; nil skips request metrics
	HTTPMetrics gin.HandlerFunc
	// SubmitLimiter is optional; nil leaves submission unthrottled
	SubmitLimiter *middleware.RateLimiter
	// APIVersion defaults to v1
	APIVersion string
}

// New builds the gin engine with the middleware chain and all routes.
// Health probes answer both at the root and under the API prefix.
func New(cfg Config, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(cfg.Tracing),
	)
	if cfg.HTTPMetrics != nil {
		engine.Use(cfg.HTTPMetrics)
	}
	engine.Use(
		middleware.Secure(),
		middleware.CORS(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
		middleware.CartSession(),
		middleware.OptionalIdentity(cfg.Verifier),
		middleware.SpanAttributes(),
	)

	health := healthGroup(h.Health)
	health.Mount(engine)

	NewAPI(cfg.APIVersion, log).
		Add(
			health,
			cartGroup(h.Cart),
			checkoutGroup(h.Checkout, cfg.SubmitLimiter),
			orderGroup(h.Orders),
		).
		Mount(engine)

	return engine, nil
}

func healthGroup(h *handler.HealthHandler) Group {
	return Group{Name: "health", Prefix: "/health", Routes: []Route{
		get("/live", h.Live),
		get("/ready", h.Ready),
	}}
}

func cartGroup(h *handler.CartHandler) Group {
	return Group{Name: "cart", Prefix: "/cart", Routes: []Route{
		get("", h.View),
		del("", h.Clear),
		post("/items", h.AddItem),
		patch("/items/:product_id", h.UpdateQuantity),
		del("/items/:product_id", h.RemoveItem),
	}}
}

func checkoutGroup(h *handler.CheckoutHandler, limiter *middleware.RateLimiter) Group {
	submit := []gin.HandlerFunc{h.Submit}
	if limiter != nil {
		submit = append([]gin.HandlerFunc{limiter.Limit()}, submit...)
	}
	return Group{Name: "checkout", Prefix: "/checkout", Routes: []Route{
		post("/quote", h.Quote),
		post("/submit", submit...),
		get("/status", h.Status),
		post("/reset", h.Reset),
		get("/payment", h.Payment),
		get("/payment/qr.png", h.PaymentQR),
		post("/payment/confirm", h.ConfirmPayment),
		post("/payment/abandon", h.AbandonPayment),
		get("/prefill", middleware.RequireIdentity(), h.Prefill),
	}}
}

// Orders are only listed for a signed-in customer
func orderGroup(h *handler.OrderHandler) Group {
	return Group{
		Name:       "orders",
		Prefix:     "/orders",
		Middleware: []gin.HandlerFunc{middleware.RequireIdentity()},
		Routes: []Route{
			get("/mine", h.ListMine),
		},
	}
}
