package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig `json:"server"`
	Upload   UploadConfig `json:"upload"`
	Database Database     `json:"database"`
	Redis    RedisConfig  `json:"redis"`
	Device   DeviceConfig `json:"device"`
	Sentry   SentryConfig `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type UploadConfig struct {
	MaxRequestBodyMB     int64 `json:"max_request_body"`
	MaxMultipartMemoryMB int64 `json:"max_multipart_memory"`
}

type Database struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Password            string        `json:"password"`
	DatabaseID          int           `json:"database_id"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	Nodes               []RedisNode   `json:"nodes"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

// DeviceConfig bounds the outbound device pipeline. Timeouts are seconds.
type DeviceConfig struct {
	RequestTimeout   time.Duration `json:"request_timeout"`    // frame pipeline calls
	ControlTimeout   time.Duration `json:"control_timeout"`    // simple control calls
	MaxRemoteFetchMB int64         `json:"max_remote_fetch"`   // remote image ceiling
	RegistryPrefix   string        `json:"registry_namespace"` // redis key namespace
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}
