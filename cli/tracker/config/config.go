package config

/*
Configuration file of the tracker gateway.
*/

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"
)

type Settings struct {
	BrokerURL         string `yaml:"broker_url"`
	ClientIDPrefix    string `yaml:"client_id_prefix"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
	ReconnectBaseSec  int    `yaml:"reconnect_base_sec"`
	MaxReconnects     int    `yaml:"max_reconnects"`

	DeliveryAPIURL string `yaml:"delivery_api_url"`
	PollSec        int    `yaml:"poll_sec"`

	ApiPort int32 `yaml:"api_port"`

	Store         map[string]map[string]string `yaml:"storage"`
	StoreBuffer   int                          `yaml:"storage_buffer"`
	StoreWorkers  int                          `yaml:"storage_workers"`
	LogLevel      string                       `yaml:"log_level"`
	LogFilePath   string                       `yaml:"log_file_path"`
	LogMaxAgeDays int                          `yaml:"log_max_age_days"`
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

	if c.DeliveryAPIURL == "" {
		return c, fmt.Errorf("delivery_api_url is required")
	}
	if c.ClientIDPrefix == "" {
		c.ClientIDPrefix = "antermbg-tracker"
	}
	if c.PollSec <= 0 {
		c.PollSec = 15
	}
	if c.ApiPort == 0 {
		c.ApiPort = 8080
	}
	if c.StoreBuffer <= 0 {
		c.StoreBuffer = 256
	}

	return c, err
}

func (s *Settings) GetPollInterval() time.Duration {
	return time.Duration(s.PollSec) * time.Second
}

func (s *Settings) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSec) * time.Second
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
