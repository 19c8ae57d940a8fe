package tele

type Config struct { //nolint:maligned
	Enabled     bool   `hcl:"enable"`
	LogDebug    bool   `hcl:"log_debug"`
	PersistPath string `hcl:"persist_path"`
	// upper bound of delay between delivery attempts
	RetryMaxSec    int `hcl:"retry_max_sec"`
	SendTimeoutSec int `hcl:"send_timeout_sec"`

	Mqtt   MqttConfig   `hcl:"mqtt"`
	Influx InfluxConfig `hcl:"influx"`
}

type MqttConfig struct {
	Enabled      bool   `hcl:"enable"`
	Broker       string `hcl:"broker"`
	ClientId     string `hcl:"client_id"`
	Username     string `hcl:"username"`
	Password     string `hcl:"password"`
	TopicPrefix  string `hcl:"topic_prefix"`
	KeepaliveSec int    `hcl:"keepalive_sec"`
}

type InfluxConfig struct {
	Enabled     bool   `hcl:"enable"`
	Url         string `hcl:"url"`
	Token       string `hcl:"token"`
	Org         string `hcl:"org"`
	Bucket      string `hcl:"bucket"`
	Measurement string `hcl:"measurement"`
}
