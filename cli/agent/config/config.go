package config

/*
Configuration file of the driver agent.
*/

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"
)

type Settings struct {
	DriverID string `yaml:"driver_id"`
	Mode     string `yaml:"mode"` // delivery | pickup

	BrokerURL         string `yaml:"broker_url"`
	ClientIDPrefix    string `yaml:"client_id_prefix"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
	AckTimeoutSec     int    `yaml:"ack_timeout_sec"`
	ReconnectBaseSec  int    `yaml:"reconnect_base_sec"`
	MaxReconnects     int    `yaml:"max_reconnects"`

	DeliveryAPIURL string `yaml:"delivery_api_url"`
	PollSec        int    `yaml:"poll_sec"`
	PublishSec     int    `yaml:"publish_sec"`

	GpsdAddr string `yaml:"gpsd_addr"`

	LogLevel      string `yaml:"log_level"`
	LogFilePath   string `yaml:"log_file_path"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, err
	}

	if c.DriverID == "" {
		return c, fmt.Errorf("driver_id is required")
	}
	if c.DeliveryAPIURL == "" {
		return c, fmt.Errorf("delivery_api_url is required")
	}
	if c.Mode == "" {
		c.Mode = "delivery"
	}
	if c.ClientIDPrefix == "" {
		c.ClientIDPrefix = "antermbg-driver"
	}
	if c.PollSec <= 0 {
		c.PollSec = 10
	}
	if c.PublishSec <= 0 {
		c.PublishSec = 30
	}
	if c.GpsdAddr == "" {
		c.GpsdAddr = "127.0.0.1:2947"
	}

	return c, err
}

func (s *Settings) GetPollInterval() time.Duration {
	return time.Duration(s.PollSec) * time.Second
}

func (s *Settings) GetPublishInterval() time.Duration {
	return time.Duration(s.PublishSec) * time.Second
}

func (s *Settings) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSec) * time.Second
}

func (s *Settings) GetAckTimeout() time.Duration {
	return time.Duration(s.AckTimeoutSec) * time.Second
}

func (s *Settings) GetReconnectBase() time.Duration {
	return time.Duration(s.ReconnectBaseSec) * time.Second
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}
