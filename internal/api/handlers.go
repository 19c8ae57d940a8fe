package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/internal/threshold"
)

// nan or inf readings render as null
type dataItem struct {
	Id   string              `json:"id"`
	Type string              `json:"type"`
	Temp helpers.JsonFloat32 `json:"temp"`
	Hum  helpers.JsonFloat32 `json:"hum"`
	Soil helpers.JsonFloat32 `json:"soil"`
}

type thresholdItem struct {
	Id        string  `json:"id"`
	Temp      float32 `json:"temp_th"`
	Hum       float32 `json:"hum_th"`
	Soil      float32 `json:"soil_th"`
	PeriodSec int32   `json:"period_sec"`
}

// every field is required, pointers tell missing from zero
type configRequest struct {
	Type      *string  `json:"type" binding:"required,eq=config"`
	Id        *string  `json:"id" binding:"required"`
	Temp      *float32 `json:"temp" binding:"required"`
	Hum       *float32 `json:"hum" binding:"required"`
	Soil      *float32 `json:"soil" binding:"required"`
	PeriodSec *int32   `json:"period_sec" binding:"required"`
}

func (self *Server) handleInterface(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHtml)
}

func (self *Server) handleData(c *gin.Context) {
	reg := self.g.Nodes()
	items := make([]dataItem, 0, reg.Len())
	for _, s := range reg.Slots() {
		r := self.g.Reading(s)
		items = append(items, dataItem{
			Id:   reg.Id(s),
			Type: "data",
			Temp: helpers.JsonFloat32(r.Temp),
			Hum:  helpers.JsonFloat32(r.Hum),
			Soil: helpers.JsonFloat32(r.Soil),
		})
	}
	c.JSON(http.StatusOK, items)
}

func (self *Server) handleThresholds(c *gin.Context) {
	es := self.g.Thresholds().Snapshot()
	items := make([]thresholdItem, len(es))
	for i, e := range es {
		items[i] = thresholdItem{Id: e.Id, Temp: e.Temp, Hum: e.Hum, Soil: e.Soil, PeriodSec: e.PeriodSec}
	}
	c.JSON(http.StatusOK, items)
}

func (self *Server) handleConfig(c *gin.Context) {
	if n := c.Request.ContentLength; n <= 0 || n > maxConfigBody {
		c.String(http.StatusBadRequest, "Bad POST length")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxConfigBody)
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		self.log.Infof("api config invalid err=%v", err)
		c.String(http.StatusBadRequest, "Invalid JSON")
		return
	}
	s, ok := self.g.Nodes().Resolve(*req.Id)
	if !ok {
		self.log.Infof("api config unknown node=%s", *req.Id)
		c.String(http.StatusBadRequest, "Unknown node ID")
		return
	}
	t := threshold.Target{Temp: *req.Temp, Hum: *req.Hum, Soil: *req.Soil, PeriodSec: *req.PeriodSec}
	if err := self.g.Thresholds().Set(s, t); err != nil {
		// new value is already in effect, storage failure is operator's concern
		self.log.Errorf("api config err=%v", err)
	}
	c.String(http.StatusOK, "OK")
}

func (self *Server) handleHealth(c *gin.Context) {
	breaker := "disabled"
	if self.persist != nil && self.persist.Enabled() {
		breaker = self.persist.BreakerState()
	}
	status := "ok"
	code := http.StatusOK
	if !self.g.PortOpen() || breaker == "open" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":       status,
		"uptime":       time.Since(self.started).Truncate(time.Second).String(),
		"serial_open":  self.g.PortOpen(),
		"persist":      breaker,
		"tele_enabled": self.g.Tele().Enabled(),
		"tele":         self.g.Tele().Stat(),
	})
}
