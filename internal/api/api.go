// Package api is HTTP/JSON face of gateway: live readings, thresholds, config changes.
package api

import (
	"context"
	_ "embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/loragate/internal/gateway"
	"github.com/temoto/loragate/internal/threshold"
	"github.com/temoto/loragate/log2"
)

const (
	DefaultListen = ":8080"
	maxConfigBody = 256
)

//go:embed index.html
var indexHtml []byte

func init() { gin.SetMode(gin.ReleaseMode) }

type Server struct {
	log     *log2.Log
	g       *gateway.Gateway
	persist *threshold.Persist
	router  *gin.Engine
	started time.Time
}

// New persist may be nil.
func New(log *log2.Log, g *gateway.Gateway, persist *threshold.Persist) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	self := &Server{
		log:     log,
		g:       g,
		persist: persist,
		router:  r,
		started: time.Now(),
	}
	self.routes()
	return self
}

func (self *Server) Handler() http.Handler { return self.router }

func (self *Server) routes() {
	r := self.router
	r.GET("/interface", self.handleInterface)
	r.GET("/data", self.handleData)
	r.GET("/thresholds", self.handleThresholds)
	r.POST("/config", self.handleConfig)
	r.GET("/healthz", self.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(self.g.Metrics().Registry, promhttp.HandlerOpts{})))
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not found")
	})
}

// Run serves until ctx is done.
func (self *Server) Run(ctx context.Context, listen string) error {
	if listen == "" {
		listen = DefaultListen
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           self.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errch := make(chan error, 1)
	go func() { errch <- srv.ListenAndServe() }()
	self.log.Infof("api listen=%s", listen)

	select {
	case err := <-errch:
		return errors.Annotatef(err, "api listen=%s", listen)
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutCtx)
	return errors.Annotate(err, "api shutdown")
}

func requestLogger(log *log2.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbegin := time.Now()
		c.Next()
		log.Debugf("api %s %s status=%d duration=%v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(tbegin))
	}
}
