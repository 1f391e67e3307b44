package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tosca-iot/tosca-go/pkg/broker"
	"github.com/tosca-iot/tosca-go/pkg/discovery"
	"github.com/tosca-iot/tosca-go/pkg/history"
	"github.com/tosca-iot/tosca-go/pkg/persistence"
	"github.com/tosca-iot/tosca-go/pkg/policy"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Device kinds cmd/tosca-device can run.
const (
	KindLight       = "light"
	KindThermometer = "thermometer"
)

// envPrefix starts every environment override.
const envPrefix = "TOSCA_"

// Device is the configuration of cmd/tosca-device.
type Device struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Description string `yaml:"description"`
	WiFiMAC     string `yaml:"wifi_mac"`

	// StateFile keeps the simulated hardware state across restarts.
	// Empty disables persistence.
	StateFile string `yaml:"state_file"`

	HTTP      HTTPConfig      `yaml:"http"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Broker    BrokerConfig    `yaml:"broker"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
}

// Controller is the configuration of cmd/tosca-controller.
type Controller struct {
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Devices lists device addresses queried on every discovery round in
	// addition to mDNS, e.g. "192.168.1.20:3000".
	Devices []string `yaml:"devices"`

	Broker    BrokerConfig    `yaml:"broker"`
	Policy    PolicyConfig    `yaml:"policy"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Requests  RequestsConfig  `yaml:"requests"`
	Log       LogConfig       `yaml:"log"`
}

// HTTPConfig is the listen address of a device.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns host:port.
func (h HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// DiscoveryConfig configures mDNS.
type DiscoveryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	ServiceName string        `yaml:"service_name"`
	Interface   string        `yaml:"interface"`
	Timeout     time.Duration `yaml:"timeout"`
}

// BrokerConfig configures the MQTT connection.
type BrokerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// Client converts the section to a broker client configuration.
func (b BrokerConfig) Client() broker.Config {
	return broker.Config{
		Host:        b.Host,
		Port:        b.Port,
		TLS:         b.TLS,
		ClientID:    b.ClientID,
		Username:    b.Username,
		Password:    b.Password,
		TopicPrefix: b.TopicPrefix,
		QoS:         byte(b.QoS),
	}
}

// EventsConfig sets the publishing periods of a device.
type EventsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// PolicyConfig names the hazard policy. File wins over Default; a file
// without a default action takes Default.
type PolicyConfig struct {
	File    string `yaml:"file"`
	Default string `yaml:"default"`
}

// Load builds the policy the section describes.
func (p PolicyConfig) Load() (policy.Policy, error) {
	var pol policy.Policy
	if p.File != "" {
		loaded, err := policy.Load(p.File)
		if err != nil {
			return policy.Policy{}, err
		}
		pol = loaded
	}
	if pol.Default == nil && p.Default != "" {
		a, err := policy.ParseAction(p.Default)
		if err != nil {
			return policy.Policy{}, fmt.Errorf("%w: policy.default: %w", ErrInvalid, err)
		}
		pol = pol.WithDefault(a)
	}
	return pol, nil
}

// CacheConfig configures the descriptor cache. An empty path disables it.
type CacheConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Store converts the section to a cache configuration.
func (c CacheConfig) Store() persistence.Config {
	return persistence.Config{Path: c.Path, WALMode: c.WALMode, BusyTimeout: c.BusyTimeout}
}

// HistoryConfig configures the InfluxDB event history.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Recorder converts the section to a history configuration.
func (h HistoryConfig) Recorder() history.Config {
	return history.Config{
		Enabled:       h.Enabled,
		URL:           h.URL,
		Token:         h.Token,
		Org:           h.Org,
		Bucket:        h.Bucket,
		BatchSize:     h.BatchSize,
		FlushInterval: h.FlushInterval,
	}
}

// RequestsConfig configures requests to devices.
type RequestsConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	FetchConcurrency int           `yaml:"fetch_concurrency"`
}

// LogConfig configures operational and protocol logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`

	// ProtocolFile captures protocol events in CBOR. Empty disables it.
	ProtocolFile string `yaml:"protocol_file"`
}

// DefaultDevice returns the device configuration used when no file is given.
func DefaultDevice() *Device {
	return &Device{
		Name: "tosca-light",
		Kind: KindLight,
		HTTP: HTTPConfig{Port: 3000},
		Discovery: DiscoveryConfig{
			Enabled:     true,
			ServiceName: "tosca",
		},
		Broker: BrokerConfig{
			Host:        "localhost",
			Port:        1883,
			TopicPrefix: "tosca",
			QoS:         1,
		},
		Log: LogConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// DefaultController returns the controller configuration used when no file
// is given. The default policy action is left unset on purpose: operators
// must choose it.
func DefaultController() *Controller {
	return &Controller{
		Discovery: DiscoveryConfig{
			Enabled:     true,
			ServiceName: "tosca",
			Timeout:     2 * time.Second,
		},
		Broker: BrokerConfig{
			Host:        "localhost",
			Port:        1883,
			TopicPrefix: "tosca",
			QoS:         1,
		},
		Cache: CacheConfig{WALMode: true, BusyTimeout: 5},
		History: HistoryConfig{
			URL:           "http://localhost:8086",
			Bucket:        "tosca",
			BatchSize:     100,
			FlushInterval: time.Second,
		},
		Requests: RequestsConfig{Timeout: 10 * time.Second, FetchConcurrency: 8},
		Log:      LogConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// LoadDevice reads a device configuration. An empty path uses the defaults.
// Environment overrides are applied before validation.
func LoadDevice(path string) (*Device, error) {
	cfg := DefaultDevice()
	if err := readFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadController reads a controller configuration. An empty path uses the
// defaults. Environment overrides are applied before validation.
func LoadController(path string) (*Controller, error) {
	cfg := DefaultController()
	if err := readFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Validate checks the device configuration.
func (c *Device) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch c.Kind {
	case KindLight, KindThermometer:
	default:
		errs = append(errs, fmt.Errorf("kind %q is not one of %s, %s", c.Kind, KindLight, KindThermometer))
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 0xffff {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Events.Interval < 0 {
		errs = append(errs, errors.New("events.interval must not be negative"))
	}
	errs = append(errs, c.Broker.validate()...)
	errs = append(errs, c.Log.validate()...)
	return joinInvalid(errs)
}

// Validate checks the controller configuration.
func (c *Controller) Validate() error {
	var errs []error
	if c.Discovery.Timeout <= 0 {
		errs = append(errs, errors.New("discovery.timeout must be positive"))
	}
	for _, d := range c.Devices {
		if _, err := discovery.HandleFromURL(d); err != nil {
			errs = append(errs, fmt.Errorf("devices: %w", err))
		}
	}
	if c.Policy.Default != "" {
		if _, err := policy.ParseAction(c.Policy.Default); err != nil {
			errs = append(errs, fmt.Errorf("policy.default: %w", err))
		}
	}
	if c.History.Enabled {
		if c.History.URL == "" || c.History.Bucket == "" {
			errs = append(errs, errors.New("history.url and history.bucket are required when history is enabled"))
		}
	}
	if c.Requests.Timeout < 0 {
		errs = append(errs, errors.New("requests.timeout must not be negative"))
	}
	errs = append(errs, c.Broker.validate()...)
	errs = append(errs, c.Log.validate()...)
	return joinInvalid(errs)
}

func (b BrokerConfig) validate() []error {
	if !b.Enabled {
		return nil
	}
	var errs []error
	if b.Host == "" {
		errs = append(errs, errors.New("broker.host is required when the broker is enabled"))
	}
	if b.Port <= 0 || b.Port > 0xffff {
		errs = append(errs, fmt.Errorf("broker.port %d out of range", b.Port))
	}
	if b.QoS < 0 || b.QoS > 2 {
		errs = append(errs, fmt.Errorf("broker.qos %d out of range", b.QoS))
	}
	return errs
}

func (l LogConfig) validate() []error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is unknown", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is unknown", l.Format))
	}
	return errs
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Environment overrides. Unparsable numbers and booleans are ignored.

func (c *Device) applyEnv(getenv func(string) string) {
	setString(getenv, "DEVICE_NAME", &c.Name)
	setString(getenv, "DEVICE_KIND", &c.Kind)
	setString(getenv, "DEVICE_WIFI_MAC", &c.WiFiMAC)
	setString(getenv, "STATE_FILE", &c.StateFile)
	setString(getenv, "HTTP_HOST", &c.HTTP.Host)
	setInt(getenv, "HTTP_PORT", &c.HTTP.Port)
	setDuration(getenv, "EVENTS_INTERVAL", &c.Events.Interval)
	applyDiscoveryEnv(getenv, &c.Discovery)
	applyBrokerEnv(getenv, &c.Broker)
	applyLogEnv(getenv, &c.Log)
}

func (c *Controller) applyEnv(getenv func(string) string) {
	if v := getenv(envPrefix + "DEVICES"); v != "" {
		c.Devices = strings.Split(v, ",")
	}
	setString(getenv, "POLICY_FILE", &c.Policy.File)
	setString(getenv, "POLICY_DEFAULT", &c.Policy.Default)
	setString(getenv, "CACHE_PATH", &c.Cache.Path)
	setBool(getenv, "HISTORY_ENABLED", &c.History.Enabled)
	setString(getenv, "HISTORY_URL", &c.History.URL)
	setString(getenv, "HISTORY_TOKEN", &c.History.Token)
	setString(getenv, "HISTORY_ORG", &c.History.Org)
	setString(getenv, "HISTORY_BUCKET", &c.History.Bucket)
	setDuration(getenv, "REQUESTS_TIMEOUT", &c.Requests.Timeout)
	applyDiscoveryEnv(getenv, &c.Discovery)
	applyBrokerEnv(getenv, &c.Broker)
	applyLogEnv(getenv, &c.Log)
}

func applyDiscoveryEnv(getenv func(string) string, d *DiscoveryConfig) {
	setBool(getenv, "DISCOVERY_ENABLED", &d.Enabled)
	setString(getenv, "DISCOVERY_INTERFACE", &d.Interface)
	setDuration(getenv, "DISCOVERY_TIMEOUT", &d.Timeout)
}

func applyBrokerEnv(getenv func(string) string, b *BrokerConfig) {
	setBool(getenv, "BROKER_ENABLED", &b.Enabled)
	setString(getenv, "BROKER_HOST", &b.Host)
	setInt(getenv, "BROKER_PORT", &b.Port)
	setString(getenv, "BROKER_USERNAME", &b.Username)
	setString(getenv, "BROKER_PASSWORD", &b.Password)
}

func applyLogEnv(getenv func(string) string, l *LogConfig) {
	setString(getenv, "LOG_LEVEL", &l.Level)
	setString(getenv, "LOG_FORMAT", &l.Format)
	setString(getenv, "LOG_PROTOCOL_FILE", &l.ProtocolFile)
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) {
	if n, err := strconv.Atoi(getenv(envPrefix + key)); err == nil {
		*dst = n
	}
}

func setBool(getenv func(string) string, key string, dst *bool) {
	if b, err := strconv.ParseBool(getenv(envPrefix + key)); err == nil {
		*dst = b
	}
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) {
	if d, err := time.ParseDuration(getenv(envPrefix + key)); err == nil {
		*dst = d
	}
}
