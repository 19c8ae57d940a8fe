package tele

import (
	"context"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/log2"
)

const defaultMeasurement = "node_reading"

type transportInflux struct {
	// tests replace HTTP transport
	rt          http.RoundTripper
	log         *log2.Log
	client      influxdb2.Client
	w           api.WriteAPIBlocking
	measurement string
}

func (self *transportInflux) Name() string { return "influx" }

func (self *transportInflux) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.log = log
	ic := config.Influx
	if ic.Url == "" || ic.Bucket == "" {
		return errors.NotValidf("tele influx url=%q bucket=%q", ic.Url, ic.Bucket)
	}
	self.measurement = ic.Measurement
	if self.measurement == "" {
		self.measurement = defaultMeasurement
	}
	timeout := helpers.IntSecondDefault(config.SendTimeoutSec, 10*time.Second)
	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(timeout.Seconds()))
	if self.rt != nil {
		opts.SetHTTPClient(&http.Client{Transport: self.rt, Timeout: timeout})
	}
	self.client = influxdb2.NewClientWithOptions(ic.Url, ic.Token, opts)
	self.w = self.client.WriteAPIBlocking(ic.Org, ic.Bucket)
	return nil
}

func (self *transportInflux) Send(ctx context.Context, r *Reading) error {
	p := influxdb2.NewPoint(self.measurement,
		map[string]string{"node": r.Node},
		map[string]interface{}{
			"humidity":    r.Hum,
			"temperature": r.Temp,
			"soil":        r.Soil,
		},
		r.At())
	return errors.Annotatef(self.w.WritePoint(ctx, p), "tele influx write node=%s", r.Node)
}

func (self *transportInflux) Close() {
	if self.client != nil {
		self.client.Close()
	}
}
