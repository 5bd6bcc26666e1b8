package config

import "time"

// Config is the full client configuration, composed of one interface per concern.
type Config interface {
	EnvConfig
	BackendConfig
	StorageConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type BackendConfig interface {
	GetBaseURL() string
	GetAdminAPIPath() string
	GetAppAPIPath() string
	GetTenantID() string
	GetPlatform() string
	GetTerminal() string
	GetHTTPTimeout() time.Duration
}

type StorageConfig interface {
	GetDataFolder() string
	GetStoreDriver() string
	GetStorageRetries() uint64
}

type SessionConfig interface {
	GetNavThrottle() time.Duration
}

type mainConfig struct {
	EnvVars
	Backend
	Storage
	Session
}

func New() Config {
	return mainConfig{}
}
