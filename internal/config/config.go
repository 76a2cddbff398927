package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Default configuration values
const (
	DefaultHTTPAddr        = ":8080"
	DefaultHTTPSAddr       = ":8443"
	DefaultCertFile        = "sslcert/selfsigned.crt"
	DefaultKeyFile         = "sslcert/selfsigned.key"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"

	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
)

// Server holds the signaling server configuration.
type Server struct {
	// Plaintext and TLS listen addresses. Both endpoints share one router.
	HTTPAddr  string
	HTTPSAddr string

	// TLS credentials for the HTTPS endpoint.
	CertFile string
	KeyFile  string

	// StaticDir overrides the embedded browser client when set.
	StaticDir string

	// AllowedOrigins restricts websocket upgrades. Empty allows all.
	AllowedOrigins []string

	ShutdownTimeout time.Duration
	LogLevel        string
}

// Client holds configuration for the command-line peer.
type Client struct {
	// ServerURL is the websocket URL of the signaling server.
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates when a TURN server is set.
	ForceRelay bool

	LogLevel string
}

// ServerOptions carries CLI flag overrides for the server.
type ServerOptions struct {
	ConfigFile      string
	HTTPAddr        string
	HTTPSAddr       string
	CertFile        string
	KeyFile         string
	StaticDir       string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// ClientOptions carries CLI flag overrides for the client commands.
type ClientOptions struct {
	ConfigFile string
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	LogLevel   string
}

// File is the on-disk YAML configuration.
type File struct {
	Server struct {
		HTTPAddr        string   `yaml:"http_addr"`
		HTTPSAddr       string   `yaml:"https_addr"`
		CertFile        string   `yaml:"cert_file"`
		KeyFile         string   `yaml:"key_file"`
		StaticDir       string   `yaml:"static_dir"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Client struct {
		ServerURL    string `yaml:"server_url"`
		STUNServer   string `yaml:"stun_server"`
		TURNServer   string `yaml:"turn_server"`
		TURNUsername string `yaml:"turn_username"`
		TURNPassword string `yaml:"turn_password"`
		ForceRelay   bool   `yaml:"force_relay"`
	} `yaml:"client"`

	LogLevel string `yaml:"log_level"`
}

// ReadFile parses a YAML configuration file.
func ReadFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.UnmarshalStrict(content, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// loadFile reads the config file named by the flag or WARPCALL_CONFIG.
// With neither set it returns an empty File.
func loadFile(flagPath string) (*File, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("WARPCALL_CONFIG")
	}
	if path == "" {
		return &File{}, nil
	}
	return ReadFile(path)
}

// pick returns the first non-empty value of: flag, environment, file, default.
func pick(flag, envKey, file, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if file != "" {
		return file
	}
	return def
}

// LoadServer reads server configuration with the following priority:
// 1. CLI flags (passed via ServerOptions) - highest priority
// 2. Environment variables
// 3. Config file
// 4. Hardcoded defaults - lowest priority
func LoadServer(opts ServerOptions) (*Server, error) {
	f, err := loadFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	cfg := &Server{
		HTTPAddr:  pick(opts.HTTPAddr, "WARPCALL_HTTP_ADDR", f.Server.HTTPAddr, DefaultHTTPAddr),
		HTTPSAddr: pick(opts.HTTPSAddr, "WARPCALL_HTTPS_ADDR", f.Server.HTTPSAddr, DefaultHTTPSAddr),
		CertFile:  pick(opts.CertFile, "WARPCALL_CERT_FILE", f.Server.CertFile, DefaultCertFile),
		KeyFile:   pick(opts.KeyFile, "WARPCALL_KEY_FILE", f.Server.KeyFile, DefaultKeyFile),
		StaticDir: pick(opts.StaticDir, "WARPCALL_STATIC_DIR", f.Server.StaticDir, ""),
		LogLevel:  pick(opts.LogLevel, "LOG_LEVEL", f.LogLevel, DefaultLogLevel),
	}

	switch {
	case len(opts.AllowedOrigins) > 0:
		cfg.AllowedOrigins = opts.AllowedOrigins
	case os.Getenv("WARPCALL_ALLOWED_ORIGINS") != "":
		cfg.AllowedOrigins = splitList(os.Getenv("WARPCALL_ALLOWED_ORIGINS"))
	default:
		cfg.AllowedOrigins = f.Server.AllowedOrigins
	}

	cfg.ShutdownTimeout = opts.ShutdownTimeout
	if cfg.ShutdownTimeout == 0 {
		raw := pick("", "WARPCALL_SHUTDOWN_TIMEOUT", f.Server.ShutdownTimeout, "")
		if raw == "" {
			cfg.ShutdownTimeout = DefaultShutdownTimeout
		} else {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid shutdown timeout %q: %w", raw, err)
			}
			cfg.ShutdownTimeout = d
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("shutdown timeout must be positive, got %s", cfg.ShutdownTimeout)
	}

	if cfg.HTTPAddr == cfg.HTTPSAddr {
		return nil, fmt.Errorf("http and https endpoints cannot share address %s", cfg.HTTPAddr)
	}

	return cfg, nil
}

// LoadClient reads client configuration with the same priority as LoadServer.
func LoadClient(opts ClientOptions) (*Client, error) {
	f, err := loadFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	cfg := &Client{
		ServerURL:  pick(opts.ServerURL, "WARPCALL_SERVER_URL", f.Client.ServerURL, DefaultServerURL),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", f.Client.STUNServer, DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", f.Client.TURNServer, ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", f.Client.TURNUsername, ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", f.Client.TURNPassword, ""),
		LogLevel:   pick(opts.LogLevel, "LOG_LEVEL", f.LogLevel, "error"),
	}

	switch v := os.Getenv("WARPCALL_FORCE_RELAY"); {
	case opts.ForceRelay:
		cfg.ForceRelay = true
	case v != "":
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WARPCALL_FORCE_RELAY %q: %w", v, err)
		}
		cfg.ForceRelay = b
	default:
		cfg.ForceRelay = f.Client.ForceRelay
	}

	if !strings.HasPrefix(cfg.ServerURL, "ws://") && !strings.HasPrefix(cfg.ServerURL, "wss://") {
		return nil, fmt.Errorf("server URL must start with ws:// or wss://, got %q", cfg.ServerURL)
	}

	return cfg, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Client) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Client) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
