package config

import (
	"fmt"
	"time"

	"github.com/agendly/whatsapp-agent/internal/whatsapp"
)

// Config is the root agent configuration, loaded once at startup.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	WhatsApp      WhatsAppConfig      `mapstructure:"whatsapp"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	Limits    ServerLimits    `mapstructure:"limits"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Health    EndpointConfig  `mapstructure:"health"`
	Metrics   EndpointConfig  `mapstructure:"metrics"`
}

type ServerLimits struct {
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	// Rate is tokens per second; Burst the bucket capacity. Applied to
	// the send and booking endpoints only.
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type EndpointConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WhatsAppConfig configures the messaging session manager. Enabled is
// read once at construction; toggling it requires a restart.
type WhatsAppConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	StoreDir    string `mapstructure:"store_dir"`
	CountryCode string `mapstructure:"country_code"`

	// Empirically chosen timing constants; tune against the observed
	// behavior of the transport before changing the defaults.
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	RestartDelay      time.Duration `mapstructure:"restart_delay"`
	InitTimeout       time.Duration `mapstructure:"init_timeout"`
	SendTimeout       time.Duration `mapstructure:"send_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// ManagerConfig maps the timing settings onto the session manager's
// configuration.
func (w WhatsAppConfig) ManagerConfig() whatsapp.Config {
	return whatsapp.Config{
		ReconnectDelay: w.ReconnectDelay,
		RestartDelay:   w.RestartDelay,
		InitTimeout:    w.InitTimeout,
		SendTimeout:    w.SendTimeout,
	}
}

// NotificationsConfig carries the salon identity and template overrides
// used when a booking request does not supply its own config.
type NotificationsConfig struct {
	SalonName    string `mapstructure:"salon_name"`
	SalonAddress string `mapstructure:"salon_address"`
	SalonPhone   string `mapstructure:"salon_phone"`

	Templates TemplatesConfig `mapstructure:"templates"`
}

type TemplatesConfig struct {
	Confirmation string `mapstructure:"confirmation"`
	Reminder     string `mapstructure:"reminder"`
	Cancellation string `mapstructure:"cancellation"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetListenAddr returns the host:port the HTTP server binds to.
func (c *Config) GetListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
