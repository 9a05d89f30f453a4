package internal

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=5001"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	GroupExpiration      time.Duration `env:"GROUP_EXPIRATION,default=24h"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,default=1h"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=1m"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}
