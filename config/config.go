// Package config loads ManageSieve client connection defaults from an INI
// file, the same gcfg-based format the teacher uses for ingester configs.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gravwell/gcfg"
)

const (
	defaultPort           = 4190
	defaultTimeout        = 30 * time.Second
	defaultSASLMechanism  = "PLAIN"
	maxConfigSize   int64 = 1024 * 1024
)

var (
	ErrNoHost            = errors.New("config: Host is required")
	ErrInvalidPort       = errors.New("config: Port must be between 1 and 65535")
	ErrInvalidTimeout    = errors.New("config: Connection_Timeout is not a valid duration")
	ErrConfigFileTooLarge = errors.New("config: file exceeds the maximum allowed size")
)

// Global holds the [Global] section of a ManageSieve client config file.
type Global struct {
	Host                     string
	Port                     int    `gcfg:",omitempty"`
	Use_TLS                  bool   `gcfg:",omitempty"`
	Insecure_Skip_TLS_Verify bool   `gcfg:",omitempty"`
	Connection_Timeout       string `gcfg:",omitempty"`
	SASL_Mechanism           string `gcfg:",omitempty"`
	Username                 string `gcfg:",omitempty"`
	Proxy                    string `gcfg:",omitempty"`
}

// ClientConfig is the top-level structure gcfg populates from a config file;
// callers embed or wrap it the way ingesters embed config.IngestConfig.
type ClientConfig struct {
	Global Global
}

// LoadConfigBytes parses b (INI-format) into a ClientConfig and verifies it.
func LoadConfigBytes(b []byte) (*ClientConfig, error) {
	if int64(len(b)) > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}
	var cc ClientConfig
	if err := gcfg.ReadStringInto(&cc, string(b)); err != nil {
		return nil, fmt.Errorf("config: parse failed: %w", err)
	}
	if err := cc.Verify(); err != nil {
		return nil, err
	}
	return &cc, nil
}

// Verify fills in defaults and checks the parameters of cc, mirroring
// ingest/config.IngestConfig.Verify's "fill defaults, then validate" shape.
func (cc *ClientConfig) Verify() error {
	cc.loadDefaults()

	if strings.TrimSpace(cc.Global.Host) == "" {
		return ErrNoHost
	}
	if cc.Global.Port < 1 || cc.Global.Port > 65535 {
		return ErrInvalidPort
	}
	if _, err := cc.Timeout(); err != nil {
		return ErrInvalidTimeout
	}
	return nil
}

func (cc *ClientConfig) loadDefaults() {
	if cc.Global.Port == 0 {
		cc.Global.Port = defaultPort
	}
	if cc.Global.SASL_Mechanism == "" {
		cc.Global.SASL_Mechanism = defaultSASLMechanism
	}
	if cc.Global.Connection_Timeout == "" {
		cc.Global.Connection_Timeout = defaultTimeout.String()
	}
}

// Timeout parses Connection_Timeout as a Go duration string.
func (cc *ClientConfig) Timeout() (time.Duration, error) {
	if cc.Global.Connection_Timeout == "" {
		return defaultTimeout, nil
	}
	return time.ParseDuration(cc.Global.Connection_Timeout)
}

// Addr returns the host:port pair Dial expects.
func (cc *ClientConfig) Addr() string {
	return fmt.Sprintf("%s:%d", cc.Global.Host, cc.Global.Port)
}
