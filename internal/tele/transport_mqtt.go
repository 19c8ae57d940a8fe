package tele

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/log2"
)

const defaultTopicPrefix = "loragate"

type transportMqtt struct {
	log         *log2.Log
	m           mqtt.Client
	mopt        *mqtt.ClientOptions
	topicPrefix string
	topicOnline string
}

func (self *transportMqtt) Name() string { return "mqtt" }

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.log = log
	mc := config.Mqtt
	if mc.Broker == "" {
		return errors.NotValidf("tele mqtt broker empty")
	}
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log
	if config.LogDebug {
		mqtt.DEBUG = log
	}

	clientId := mc.ClientId
	if clientId == "" {
		clientId = defaultTopicPrefix
	}
	self.topicPrefix = mc.TopicPrefix
	if self.topicPrefix == "" {
		self.topicPrefix = defaultTopicPrefix
	}
	self.topicOnline = fmt.Sprintf("%s/online", self.topicPrefix)
	keepAlive := helpers.IntSecondDefault(mc.KeepaliveSec, 60*time.Second)

	self.mopt = mqtt.NewClientOptions().
		AddBroker(mc.Broker).
		SetBinaryWill(self.topicOnline, []byte{0x00}, 1, true).
		SetClientID(clientId).
		SetUsername(mc.Username).
		SetPassword(mc.Password).
		SetKeepAlive(keepAlive).
		SetPingTimeout(keepAlive / 2).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectRetry(true).
		SetAutoReconnect(true).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(self.mopt)
	if token := self.m.Connect(); token.Error() != nil {
		self.log.Errorf("tele mqtt connect err=%v", token.Error())
	}
	return nil
}

func (self *transportMqtt) Topic(node string) string {
	return fmt.Sprintf("%s/%s/reading", self.topicPrefix, node)
}

func (self *transportMqtt) Send(ctx context.Context, r *Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		// retry can not fix payload
		return errors.NotValidf("tele mqtt payload node=%s err=%v", r.Node, err)
	}
	token := self.m.Publish(self.Topic(r.Node), 1, false, payload)
	select {
	case <-token.Done():
		return errors.Annotatef(token.Error(), "tele mqtt publish node=%s", r.Node)
	case <-ctx.Done():
		return errors.Timeoutf("tele mqtt publish node=%s", r.Node)
	}
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	if self.m.IsConnectionOpen() {
		self.m.Publish(self.topicOnline, 1, true, []byte{0x00}).WaitTimeout(time.Second)
	}
	self.m.Disconnect(250)
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("tele mqtt disconnect err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("tele mqtt connect")
	c.Publish(self.topicOnline, 1, true, []byte{0x01})
}
