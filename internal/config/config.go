package config

import (
	"strings"
	"time"

	"github.com/derbyfab/derby-tickets/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr    = ":3000"
	DefaultTokenMaxAge   = 1 * time.Hour
	DefaultAllowedDomain = "derbyfab.com"
)

type MySQLConfig struct {
	Dsn             string   `mapstructure:"dsn"`
	ReplicaDsns     []string `mapstructure:"replicaDsns"`
	TablePrefix     string   `mapstructure:"tablePrefix"`
	MaxIdleConns    int      `mapstructure:"maxIdleConns"`
	MaxOpenConns    int      `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int      `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int      `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type SessionConfig struct {
	// MaxIdleTime is how long a session may sit without activity
	// before the periodic cleanup force-closes it.
	MaxIdleTime time.Duration `mapstructure:"maxIdleTime"`
}

type TokenConfig struct {
	Secret string        `mapstructure:"secret"`
	MaxAge time.Duration `mapstructure:"maxAge"`
}

type SecurityConfig struct {
	AllowedEmailDomains         []string      `mapstructure:"allowedEmailDomains"`
	MaxLoginAttempts            int           `mapstructure:"maxLoginAttempts"`
	LoginLockoutTime            time.Duration `mapstructure:"loginLockoutTime"`
	SuspiciousActivityThreshold int           `mapstructure:"suspiciousActivityThreshold"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend   string     `mapstructure:"backend"`
	From      string     `mapstructure:"from"`
	AlertAddr string     `mapstructure:"alertAddr"` // destination for lockout alerts
	SMTP      SMTPConfig `mapstructure:"smtp"`
}

type Config struct {
	Debug        bool           `mapstructure:"debug"`
	SiteName     string         `mapstructure:"siteName"`
	BaseURL      string         `mapstructure:"baseURL"`
	ListenAddr   string         `mapstructure:"listenAddr"`
	AllowOrigins []string       `mapstructure:"allowOrigins"`
	MySQL        MySQLConfig    `mapstructure:"mysql"`
	Redis        RedisConfig    `mapstructure:"redis"`
	Session      SessionConfig  `mapstructure:"session"`
	Token        TokenConfig    `mapstructure:"token"`
	Security     SecurityConfig `mapstructure:"security"`
	Mail         MailConfig     `mapstructure:"mail"`
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Session.MaxIdleTime == 0 {
		c.Session.MaxIdleTime = params.InactiveSessionMaxAge
	}
	if c.Token.MaxAge == 0 {
		c.Token.MaxAge = DefaultTokenMaxAge
	}
	if len(c.Security.AllowedEmailDomains) == 0 {
		c.Security.AllowedEmailDomains = []string{DefaultAllowedDomain}
	}
	if c.Security.MaxLoginAttempts == 0 {
		c.Security.MaxLoginAttempts = params.DefaultMaxLoginAttempts
	}
	if c.Security.LoginLockoutTime == 0 {
		c.Security.LoginLockoutTime = params.DefaultLoginLockoutTime
	}
	if c.Security.SuspiciousActivityThreshold == 0 {
		c.Security.SuspiciousActivityThreshold = params.DefaultSuspiciousThreshold
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
