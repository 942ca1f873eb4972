package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pion/webrtc/v3"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Relay    RelayConfig    `yaml:"relay"`
	WebRTC   WebRTCConfig   `yaml:"webrtc"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DATABASE_DRIVER" env-default:"postgres"`
	DSN             string        `yaml:"dsn" env:"DATABASE_DSN"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL"`
	Issuer     string        `yaml:"issuer" env:"JWT_ISSUER"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

type UploadsConfig struct {
	Dir           string `yaml:"dir" env:"UPLOADS_DIR"`
	MaxSize       int64  `yaml:"max_size" env:"UPLOADS_MAX_SIZE"`
	PublicBaseURL string `yaml:"public_base_url" env:"UPLOADS_PUBLIC_BASE_URL"`
}

type RelayConfig struct {
	SendBuffer      int           `yaml:"send_buffer" env:"RELAY_SEND_BUFFER"`
	MaxMessageSize  int64         `yaml:"max_message_size" env:"RELAY_MAX_MESSAGE_SIZE"`
	WriteWait       time.Duration `yaml:"write_wait" env:"RELAY_WRITE_WAIT"`
	PongWait        time.Duration `yaml:"pong_wait" env:"RELAY_PONG_WAIT"`
	PingPeriod      time.Duration `yaml:"ping_period" env:"RELAY_PING_PERIOD"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec" env:"RELAY_RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RELAY_RATE_LIMIT_BURST"`
}

type WebRTCConfig struct {
	STUNServers []string     `yaml:"stun_servers" env:"WEBRTC_STUN_SERVERS" env-separator:","`
	TURNServers []TURNServer `yaml:"turn_servers"`
}

type TURNServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// LoadPath reads the YAML file at configPath, applies environment overrides
// and fills in defaults for anything left unset.
func LoadPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &LoadError{Path: configPath, Reason: "config file does not exist"}
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, &LoadError{Path: configPath, Reason: "cannot read config: " + err.Error()}
	}

	cfg.setDefaults()

	return &cfg, nil
}

type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	return e.Reason + ": " + e.Path
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":5000"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout <= 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = "your-secret-key"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "huddle"
	}
	if c.Auth.BcryptCost <= 0 {
		c.Auth.BcryptCost = 10
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.MaxSize <= 0 {
		c.Uploads.MaxSize = 10 << 20
	}

	if c.Relay.SendBuffer <= 0 {
		c.Relay.SendBuffer = 256
	}
	if c.Relay.MaxMessageSize <= 0 {
		c.Relay.MaxMessageSize = 64 << 10
	}
	if c.Relay.WriteWait <= 0 {
		c.Relay.WriteWait = 10 * time.Second
	}
	if c.Relay.PongWait <= 0 {
		c.Relay.PongWait = 60 * time.Second
	}
	if c.Relay.PingPeriod <= 0 || c.Relay.PingPeriod >= c.Relay.PongWait {
		c.Relay.PingPeriod = c.Relay.PongWait * 9 / 10
	}
	if c.Relay.RateLimitPerSec <= 0 {
		c.Relay.RateLimitPerSec = 20
	}
	if c.Relay.RateLimitBurst <= 0 {
		c.Relay.RateLimitBurst = 40
	}

	if len(c.WebRTC.STUNServers) == 0 && len(c.WebRTC.TURNServers) == 0 {
		c.WebRTC.STUNServers = []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		}
	}
}

// ICEServers converts the configured STUN and TURN entries into the form
// browsers expect in RTCPeerConnection's iceServers option.
func (c WebRTCConfig) ICEServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(c.TURNServers)+1)
	if len(c.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: append([]string(nil), c.STUNServers...)})
	}
	for _, turn := range c.TURNServers {
		if len(turn.URLs) == 0 {
			continue
		}
		servers = append(servers, webrtc.ICEServer{
			URLs:           append([]string(nil), turn.URLs...),
			Username:       turn.Username,
			Credential:     turn.Credential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}
