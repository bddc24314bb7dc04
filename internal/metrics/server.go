package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vmrelay/vmrelay/internal/logger"
)

// Status is the health snapshot served on /healthz.
type Status struct {
	LastCycle  time.Time `json:"last_cycle"`
	LastResult string    `json:"last_result"`
	LastError  string    `json:"last_error,omitempty"`
	Interval   string    `json:"interval"`
}

// StatusFunc returns the current snapshot. It is called per request and
// must be safe for concurrent use.
type StatusFunc func() Status

var ginModeOnce sync.Once

// staleFactor is how many missed intervals turn /healthz unhealthy.
const staleFactor = 3

// Server serves /healthz and /metrics.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	log        *logger.Logger
	now        func() time.Time
}

// NewServer builds the gin engine and routes. Nothing listens until Start.
func NewServer(addr string, m *Metrics, status StatusFunc, interval time.Duration, log *logger.Logger) *Server {
	ginModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		engine: gin.New(),
		log:    log.WithComponent("status"),
		now:    time.Now,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", func(c *gin.Context) {
		st := status()
		st.Interval = interval.String()
		code := http.StatusOK
		// Unhealthy before the first cycle and when cycles stopped coming.
		if st.LastCycle.IsZero() || s.now().Sub(st.LastCycle) > staleFactor*interval {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, st)
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the port and serves in a goroutine. It returns once the
// listener is bound.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("status server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server error", logger.Fields(logger.FieldError, err))
		}
	}()

	s.log.Info("status server started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the server down with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
