package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pandutama/tripbooking/api"
	"github.com/pandutama/tripbooking/config"
	"github.com/pandutama/tripbooking/internal/auth"
	"github.com/pandutama/tripbooking/internal/service/booking"
	"github.com/pandutama/tripbooking/internal/service/packages"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, pkgSvc packages.PackageUseCase, bookingSvc booking.BookingUseCase, authSvc *auth.Service) error {
	router := newRouter(cfg, pkgSvc, bookingSvc, authSvc)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(cfg *config.Config, pkgSvc packages.PackageUseCase, bookingSvc booking.BookingUseCase, authSvc *auth.Service) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))

	v1 := router.Group("/api/v1")
	api.NewPackageHandler(pkgSvc).Register(v1.Group("/packages"))
	api.NewBookingHandler(bookingSvc).Register(v1.Group("/bookings"))
	api.NewPaymentHandler(bookingSvc, api.WithPollOptions(
		time.Duration(cfg.Booking.PollIntervalSeconds)*time.Second,
		cfg.Booking.PollMaxChecks,
	)).Register(v1.Group("/payments"))
	api.NewVoucherHandler(bookingSvc).Register(v1.Group("/voucher"))
	api.NewAdminHandler(authSvc, bookingSvc).Register(v1.Group("/admin"))

	if cfg.HTTP.SwaggerDir != "" {
		router.StaticFS("/swagger", http.Dir(cfg.HTTP.SwaggerDir))
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(
			httpSwagger.URL("/swagger/tripbooking.swagger.json"),
		)))
	}

	return router
}
