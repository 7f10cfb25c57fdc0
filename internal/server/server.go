// Package server wires the HTTP surface: public booking intake, the signed
// payment webhook, and the authenticated back office.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guardline/aegis/internal/auth"
	authdomain "github.com/guardline/aegis/internal/auth/domain"
	"github.com/guardline/aegis/internal/auth/session"
	"github.com/guardline/aegis/internal/booking"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/config"
	"github.com/guardline/aegis/internal/gateway"
	gatewaydomain "github.com/guardline/aegis/internal/gateway/domain"
	"github.com/guardline/aegis/internal/invoice"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	"github.com/guardline/aegis/internal/notification"
	"github.com/guardline/aegis/internal/observability/logging"
	"github.com/guardline/aegis/internal/payment"
	paymentdomain "github.com/guardline/aegis/internal/payment/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	auth.Module,
	notification.Module,
	gateway.Module,
	booking.Module,
	invoice.Module,
	payment.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	authsvc    authdomain.Service
	sessions   *session.Manager
	bookingSvc bookingdomain.Service
	invoiceSvc invoicedomain.Service
	gatewaySvc gatewaydomain.Service
	webhookSvc paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	Authsvc    authdomain.Service
	Sessions   *session.Manager
	BookingSvc bookingdomain.Service
	InvoiceSvc invoicedomain.Service
	GatewaySvc gatewaydomain.Service
	WebhookSvc paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("server"),
		authsvc:    p.Authsvc,
		sessions:   p.Sessions,
		bookingSvc: p.BookingSvc,
		invoiceSvc: p.InvoiceSvc,
		gatewaySvc: p.GatewaySvc,
		webhookSvc: p.WebhookSvc,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/login", s.Login)
	authGroup.POST("/logout", s.Logout)
	authGroup.GET("/me", s.adminRequired(), s.Me)
	authGroup.POST("/change-password", s.adminRequired(), s.ChangePassword)

	// Public surface: booking intake and the signed provider webhook.
	v1.POST("/bookings", s.CreateBooking)
	v1.POST("/payments/webhook", s.HandlePaymentWebhook)

	// Back office.
	admin := s.adminRequired()
	v1.GET("/bookings", admin, s.ListBookings)
	v1.GET("/bookings/:id", admin, s.GetBooking)
	v1.PATCH("/bookings/:id/status", admin, s.UpdateBookingStatus)
	v1.PUT("/bookings/:id/payment-reference", admin, s.SetBookingPaymentReference)

	v1.POST("/payments/create-invoice", admin, s.CreateInvoice)
	v1.POST("/payments/send-invoice/:id", admin, s.SendInvoice)
	v1.GET("/payments/status/:paymentId", admin, s.GetPaymentStatus)
	v1.GET("/payments/invoice/:invoiceId", admin, s.GetInvoiceByProviderID)
	v1.GET("/payments/schedule", admin, s.GetPaymentSchedule)

	v1.GET("/invoices", admin, s.ListInvoices)
	v1.GET("/invoices/:id", admin, s.GetInvoice)
	v1.POST("/invoices/:id/cancel", admin, s.CancelInvoice)
}

func (s *Server) adminRequired() gin.HandlerFunc {
	return auth.RequireAdmin(s.authsvc, s.sessions)
}
