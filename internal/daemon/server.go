// Package daemon provides the HTTP server exposing the messaging agent:
// session status and control, outbound sends, and the booking
// notification endpoints consumed by the scheduling application.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/agendly/whatsapp-agent/internal/common"
	"github.com/agendly/whatsapp-agent/internal/config"
	"github.com/agendly/whatsapp-agent/internal/models"
	"github.com/agendly/whatsapp-agent/internal/whatsapp"
)

// SessionManager is the surface of the session manager the HTTP layer
// depends on. The whatsapp.Manager satisfies it; tests substitute fakes.
type SessionManager interface {
	Status() models.SessionStatus
	State() whatsapp.State
	Send(ctx context.Context, msg models.OutboundMessage) (*models.SendReceipt, error)
	Disconnect()
	Logout(ctx context.Context) error
	Reconnect()
}

// Server handles the agent's HTTP surface.
type Server struct {
	Config        *config.Config
	Sessions      SessionManager
	StartTime     time.Time
	TotalRequests int64
	MessagesSent  int64

	limiter *RateLimiter
	server  *http.Server
}

func NewServer(cfg *config.Config, sessions SessionManager) *Server {
	return &Server{
		Config:    cfg,
		Sessions:  sessions,
		StartTime: time.Now().UTC(),
	}
}

func (s *Server) GetVersion() string {
	return common.GetVersion()
}

// Start initializes and starts the web service
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	router := s.buildRouter()

	addr := s.Config.GetListenAddr()

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.Config.Server.Limits.ReadTimeout,
		WriteTimeout: s.Config.Server.Limits.WriteTimeout,
		IdleTimeout:  s.Config.Server.Limits.IdleTimeout,
	}

	// Store server reference for shutdown
	s.server = server

	// Channel to capture startup errors
	errChan := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	// Wait a moment to see if the server fails to start
	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		logrus.WithField("addr", addr).Info("Web service started")
		return nil
	}
}

func (s *Server) Stop() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown")
	}
	logrus.Info("Server exiting")
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		logrus.WithField("panic", err).Error("Recovered from panic")
		c.JSON(http.StatusInternalServerError, models.ActionResponse{
			Success: false,
			Error:   "Internal Server Error",
		})
	}))
	router.Use(s.requestCounterMiddleware())
	router.Use(CorrelationMiddleware())

	logrus.WithFields(logrus.Fields{
		"allowedOrigins": s.Config.Server.CORS.AllowedOrigins,
	}).Debugln("CORS configuration")

	router.Use(cors.New(cors.Config{
		AllowOrigins: s.Config.Server.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Accept",
			"X-Correlation-ID",
			"X-Requested-With",
		},
		AllowCredentials: false,
	}))

	s.setupRoutes(router)

	return router
}

// requestCounterMiddleware increments the request counter
func (s *Server) requestCounterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		atomic.AddInt64(&s.TotalRequests, 1)
		c.Next()
	}
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes(router *gin.Engine) {

	// Health endpoint
	if s.Config.Server.Health.Enabled {
		router.GET(s.Config.Server.Health.Path, s.healthHandler)
		router.GET("/ready", s.readyHandler)
	}

	// Metrics endpoint
	if s.Config.Server.Metrics.Enabled {
		router.GET(s.Config.Server.Metrics.Path, s.metricsHandler)
	}

	router.GET("/status", s.getStatus)
	router.GET("/test", s.getTest)

	router.POST("/reconnect", s.postReconnect)
	router.POST("/disconnect", s.postDisconnect)
	router.POST("/logout", s.postLogout)

	// Message submission is rate limited per client IP; session control
	// and status reads are not.
	s.limiter = NewRateLimiter(s.Config.Server.RateLimit.Rate, s.Config.Server.RateLimit.Burst)
	limited := router.Group("/", s.limiter.Middleware())
	{
		limited.POST("/send", s.postSend)

		booking := limited.Group("/booking")
		{
			booking.POST("/confirmation", s.postBookingConfirmation)
			booking.POST("/reminder", s.postBookingReminder)
			booking.POST("/cancellation", s.postBookingCancellation)
		}
	}
}

// healthHandler handles the health check endpoint
//
//	@Summary		Health check
//	@Description	Get the health status of the service and the messaging session
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Health status"
//	@Router			/health [get]
func (s *Server) healthHandler(c *gin.Context) {
	response := gin.H{
		"status":    "healthy",
		"session":   s.Sessions.State().String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.GetVersion(),
	}

	c.JSON(http.StatusOK, response)
}

// readyHandler handles the readiness check endpoint
//
//	@Summary		Readiness check
//	@Description	Check if the service is ready to accept requests
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Ready status"
//	@Router			/ready [get]
func (s *Server) readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.GetVersion(),
	})
}

// metricsHandler handles the metrics endpoint
//
//	@Summary		Service metrics
//	@Description	Get service metrics including uptime and request counts
//	@Tags			metrics
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Service metrics"
//	@Router			/metrics [get]
func (s *Server) metricsHandler(c *gin.Context) {
	uptime := time.Since(s.StartTime)

	c.JSON(http.StatusOK, gin.H{
		"uptime":        uptime.String(),
		"totalRequests": atomic.LoadInt64(&s.TotalRequests),
		"messagesSent":  atomic.LoadInt64(&s.MessagesSent),
		"sessionState":  s.Sessions.State().String(),
		"rateLimited":   s.limiter.Size(),
	})
}
