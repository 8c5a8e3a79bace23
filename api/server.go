package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mailfx/worker"
)

// Server 只读状态API：暴露进程信息和各工作单元的存活状态
type Server struct {
	router     *gin.Engine
	supervisor *worker.Supervisor
	instanceID string
	port       int
	startTime  time.Time
}

// NewServer 创建状态API服务器
func NewServer(supervisor *worker.Supervisor, port int) *Server {
	// Release模式减少gin自身的日志输出
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		router:     router,
		supervisor: supervisor,
		instanceID: uuid.NewString(),
		port:       port,
		startTime:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// corsMiddleware CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/workers", s.handleWorkers)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	handles := s.supervisor.Handles()
	live := 0
	for _, h := range handles {
		if h.Alive() {
			live++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"instance_id":      s.instanceID,
		"uptime_seconds":   int(time.Since(s.startTime).Seconds()),
		"expected_workers": len(handles),
		"live_workers":     live,
	})
}

func (s *Server) handleWorkers(c *gin.Context) {
	handles := s.supervisor.Handles()
	workers := make([]gin.H, 0, len(handles))
	for _, h := range handles {
		workers = append(workers, gin.H{
			"name":           h.Name(),
			"status":         h.Status().String(),
			"alive":          h.Alive(),
			"failure_reason": h.FailureReason(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}

// Handler 暴露底层handler（测试用）
func (s *Server) Handler() http.Handler { return s.router }

// Run 启动HTTP服务，stopCh关闭后优雅退出
func (s *Server) Run(stopCh <-chan struct{}) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("状态API启动失败: %w", err)
	case <-stopCh:
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("状态API关闭失败: %w", err)
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
