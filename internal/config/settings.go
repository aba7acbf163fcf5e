package config

import (
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
	APIVersion     string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

const (
	// MinRefreshInterval and MaxRefreshInterval bound the per-connection
	// auto-refresh interval. Values outside the range are clamped.
	MinRefreshInterval = 1 * time.Second
	MaxRefreshInterval = 60 * time.Second
)

type (
	ServiceConfig struct {
		AppConfig             AppConfig                   `json:"app_config"`
		Logging               LoggingConfig               `json:"logging"`
		HTTPServer            HTTPServerConfig            `json:"http_server"`
		Supervisor            SupervisorConfig            `json:"supervisor"`
		Codec                 CodecConfig                 `json:"codec"`
		Driver                DriverConfig                `json:"driver"`
		Storage               StorageConfig               `json:"storage"`
		Cache                 CacheConfig                 `json:"cache"`
		Export                ExportConfig                `json:"export"`
		Backoff               BackoffConfig               `json:"backoff"`
		ThrottledRateLimiting ThrottledRateLimitingConfig `json:"throttled_rate_limiting"`
	}

	AppConfig struct {
		ServiceName    string `envconfig:"APP_SERVICE_NAME" default:"svc-queue-monitor" json:"service_name"`
		ServiceVersion string `envconfig:"APP_SERVICE_VERSION" default:"0.0.0" json:"service_version"`
		CommitSHA      string `envconfig:"APP_COMMIT_SHA" default:"unknown" json:"commit_sha"`
		APIVersion     string `envconfig:"APP_API_VERSION" default:"v1" json:"api_version"`
		Env            string `envconfig:"APP_ENVIRONMENT" default:"unknown" json:"env"`
	}

	LoggingConfig struct {
		Level  string `envconfig:"LOGGING_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOGGING_FORMAT" default:"json" json:"format"`
	}

	HTTPServerConfig struct {
		Port            int           `envconfig:"HTTP_SERVER_PORT" default:"8088" json:"port"`
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		ReadTimeout     time.Duration `envconfig:"HTTP_SERVER_READ_TIMEOUT" default:"30s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_SERVER_WRITE_TIMEOUT" default:"30s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_SERVER_IDLE_TIMEOUT" default:"120s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SERVER_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	// SupervisorConfig drives the connection supervisor: how often each
	// connection re-enumerates its queues and how aggressively it reconnects.
	SupervisorConfig struct {
		DefaultRefreshInterval time.Duration `envconfig:"SUPERVISOR_REFRESH_INTERVAL" default:"5s" json:"default_refresh_interval"`
		ConnectTimeout         time.Duration `envconfig:"SUPERVISOR_CONNECT_TIMEOUT" default:"30s" json:"connect_timeout"`
		AutoReconnect          bool          `envconfig:"SUPERVISOR_AUTO_RECONNECT" default:"true" json:"auto_reconnect"`
		IncludeSystemQueues    bool          `envconfig:"SUPERVISOR_INCLUDE_SYSTEM_QUEUES" default:"false" json:"include_system_queues"`
		EventBufferSize        int           `envconfig:"SUPERVISOR_EVENT_BUFFER_SIZE" default:"256" json:"event_buffer_size"`
	}

	CodecConfig struct {
		MaxRenderSize int  `envconfig:"CODEC_MAX_RENDER_SIZE" default:"1048576" json:"max_render_size"` // 1 MiB
		PageSize      int  `envconfig:"CODEC_PAGE_SIZE" default:"100" json:"page_size"`
		CacheRenders  bool `envconfig:"CODEC_CACHE_RENDERS" default:"true" json:"cache_renders"`
	}

	// DriverConfig selects and configures the queue driver. Kind "memory"
	// swaps in the in-memory driver for local demo runs.
	DriverConfig struct {
		Kind           string               `envconfig:"DRIVER_KIND" default:"amqp" json:"kind"`
		Host           string               `envconfig:"DRIVER_AMQP_HOST" default:"rabbitmq" json:"host"`
		Port           int                  `envconfig:"DRIVER_AMQP_PORT" default:"5672" json:"port"`
		ManagementPort int                  `envconfig:"DRIVER_AMQP_MANAGEMENT_PORT" default:"15672" json:"management_port"`
		Username       string               `envconfig:"DRIVER_AMQP_USERNAME" default:"guest" json:"username"`
		Password       string               `envconfig:"DRIVER_AMQP_PASSWORD" default:"guest" json:"password,omitempty"`
		VirtualHost    string               `envconfig:"DRIVER_AMQP_VIRTUAL_HOST" default:"/" json:"virtual_host"`
		ConnectTimeout time.Duration        `envconfig:"DRIVER_AMQP_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		Heartbeat      time.Duration        `envconfig:"DRIVER_AMQP_HEARTBEAT" default:"10s" json:"heartbeat"`
		MaxRetries     int                  `envconfig:"DRIVER_AMQP_MAX_RETRIES" default:"3" json:"max_retries"`
		RetryWaitTime  time.Duration        `envconfig:"DRIVER_AMQP_RETRY_WAIT_TIME" default:"500ms" json:"retry_wait_time"`
		CircuitBreaker CircuitBreakerConfig `envconfig:"DRIVER_AMQP_CIRCUIT_BREAKER" json:"circuit_breaker"`
	}

	StorageConfig struct {
		Enabled         bool          `envconfig:"POSTGRES_ENABLED" default:"false" json:"enabled"`
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            int           `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"queue_monitor" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"password,omitempty"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"10" json:"max_open_conns"`
		MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"2" json:"max_idle_conns"`
		ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"5m" json:"conn_max_lifetime"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
	}

	CacheConfig struct {
		Enabled       bool          `envconfig:"KEYDB_ENABLED" default:"false" json:"enabled"`
		Addr          string        `envconfig:"KEYDB_ADDR" default:"keydb:6379" json:"addr"`
		Password      string        `envconfig:"KEYDB_PASSWORD" default:"" json:"password,omitempty"`
		DB            int           `envconfig:"KEYDB_DB" default:"0" json:"db"`
		PoolSize      int           `envconfig:"KEYDB_POOL_SIZE" default:"10" json:"pool_size"`
		DialTimeout   time.Duration `envconfig:"KEYDB_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout   time.Duration `envconfig:"KEYDB_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout  time.Duration `envconfig:"KEYDB_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		DefaultExpiry time.Duration `envconfig:"KEYDB_DEFAULT_EXPIRY" default:"1h" json:"default_expiry"`
	}

	ExportConfig struct {
		Directory    string `envconfig:"EXPORT_DIRECTORY" default:"exports" json:"directory"`
		MaxBatchSize int    `envconfig:"EXPORT_MAX_BATCH_SIZE" default:"1000" json:"max_batch_size"`
	}

	BackoffConfig struct {
		// BaseDelay is the amount of time to backoff after the first failure.
		BaseDelay time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"1s" json:"base_delay"`
		// Multiplier is the factor with which to multiply backoffs after a
		// failed retry. Should ideally be greater than 1.
		Multiplier float64 `envconfig:"BACKOFF_MULTIPLIER" default:"1.6" json:"multiplier"`
		// Jitter is the factor with which backoffs are randomized.
		Jitter float64 `envconfig:"BACKOFF_JITTER" default:"0.2" json:"jitter"`
		// MaxDelay is the upper bound of backoff delay.
		MaxDelay time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"30s" json:"max_delay"`
	}

	CircuitBreakerConfig struct {
		MaxRequests uint32        `envconfig:"MAX_REQUESTS" default:"3" json:"max_requests"`
		Interval    time.Duration `envconfig:"INTERVAL" default:"10s" json:"interval"`
		Timeout     time.Duration `envconfig:"TIMEOUT" default:"60s" json:"timeout"`
	}

	ThrottledRateLimitingConfig struct {
		Enabled           bool     `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond int      `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"20" json:"requests_per_second"`
		BurstSize         int      `envconfig:"RATE_LIMITING_BURST_SIZE" default:"40" json:"burst_size"`
		MaxKeys           int      `envconfig:"RATE_LIMITING_MAX_KEYS" default:"1000" json:"max_keys"`
		SkipPaths         []string `envconfig:"RATE_LIMITING_SKIP_PATHS" default:"/health,/metrics" json:"skip_paths"`
	}
)

// ClampRefreshInterval forces an auto-refresh interval into the supported
// 1s-60s range, falling back to the configured default for zero values.
func (c SupervisorConfig) ClampRefreshInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = c.DefaultRefreshInterval
	}
	if interval < MinRefreshInterval {
		return MinRefreshInterval
	}
	if interval > MaxRefreshInterval {
		return MaxRefreshInterval
	}
	return interval
}
