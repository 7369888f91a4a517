package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultStateTopicPrefix  = "homeassistant"
	DefaultStatusTopic       = "homeassistant/status"
	DefaultDiscoveryPrefix   = "homeassistant"
	DefaultAvailabilityTopic = "predictive_sensor/availability"

	DefaultMaxRetries = 3

	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Config defines the connection parameters and topic layout of the MQTT host.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	// StateTopicPrefix is the base topic of the statestream export.
	StateTopicPrefix string `json:"state_topic_prefix"`
	// StatusTopic carries the birth and last will of the home automation
	// runtime.
	StatusTopic string `json:"status_topic"`
	// SkipBirth treats the runtime as started without waiting for a birth
	// message.
	SkipBirth bool `json:"skip_birth"`
	// BirthTimeout is how long to wait for a birth message before assuming
	// the runtime is already started.
	BirthTimeout      time.Duration `json:"birth_timeout"`
	DiscoveryPrefix   string        `json:"discovery_prefix"`
	AvailabilityTopic string        `json:"availability_topic"`
	QoS               byte          `json:"qos"`
	Retain            bool          `json:"retain"`
	// MaxRetries is the number of extra publish attempts. Nil selects
	// DefaultMaxRetries; zero disables retries.
	MaxRetries *int `json:"max_retries"`
	BackoffMS  int  `json:"backoff_ms"`
	// ConnectTimeout bounds the initial connection and subscriptions.
	ConnectTimeout time.Duration `json:"connect_timeout"`
	TLSConfig      *tls.Config   `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "predictive-sensor-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	if c.StateTopicPrefix == "" {
		c.StateTopicPrefix = DefaultStateTopicPrefix
	}
	if c.StatusTopic == "" {
		c.StatusTopic = DefaultStatusTopic
	}
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if c.AvailabilityTopic == "" {
		c.AvailabilityTopic = DefaultAvailabilityTopic
	}
	if c.MaxRetries == nil {
		n := DefaultMaxRetries
		c.MaxRetries = &n
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
	if c.BirthTimeout == 0 {
		c.BirthTimeout = 30 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	if c.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2"))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, errors.New("mqtt.max_retries must not be negative"))
	}
	if strings.ContainsAny(c.StateTopicPrefix+c.DiscoveryPrefix, "#+") {
		errs = append(errs, errors.New("mqtt topic prefixes must not contain wildcards"))
	}
	return errors.Join(errs...)
}

// NewClientOptions builds mqtt client options from Config. The availability
// topic doubles as last will.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.AvailabilityTopic != "" {
		opts.SetWill(cfg.AvailabilityTopic, PayloadOffline, cfg.QoS, true)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires ca_bundle")
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", c.CABundle)
	}
	cfg := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	if c.ClientCert != "" || c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
