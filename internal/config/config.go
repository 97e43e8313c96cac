package config

import (
	"encoding/json"
	"os"
	"time"
)

// Create new config instance
func NewConfig() *Config {
	return &Config{}
}

// Load configuration file in json format
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err == nil {
		_ = json.Unmarshal(data, c)
	}
	c.applyDefaults()
	return err
}

func (c *Config) applyDefaults() {
	if c.Upload.MaxRequestBodyMB <= 0 {
		c.Upload.MaxRequestBodyMB = 10
	}
	if c.Upload.MaxMultipartMemoryMB <= 0 {
		c.Upload.MaxMultipartMemoryMB = 8
	}
	if c.Device.RequestTimeout <= 0 {
		c.Device.RequestTimeout = 15 * time.Second
	} else {
		c.Device.RequestTimeout *= time.Second
	}
	if c.Device.ControlTimeout <= 0 {
		c.Device.ControlTimeout = 10 * time.Second
	} else {
		c.Device.ControlTimeout *= time.Second
	}
	if c.Device.MaxRemoteFetchMB <= 0 {
		c.Device.MaxRemoteFetchMB = 50
	}
	if c.Device.RegistryPrefix == "" {
		c.Device.RegistryPrefix = "framehub:devices"
	}
}
