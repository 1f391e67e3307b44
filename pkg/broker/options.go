package broker

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Connection constants.
const (
	// DefaultPort is the plain MQTT port.
	DefaultPort = 1883

	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish, subscribe and unsubscribe.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Config describes how to reach the broker.
type Config struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
	Username string
	Password string

	// TopicPrefix is the first topic level. Default: "tosca".
	TopicPrefix string

	// QoS is used for events and status messages.
	QoS byte

	// ConnectTimeout bounds the initial connection. Default: 10s.
	ConnectTimeout time.Duration

	// ReconnectInitial and ReconnectMax bound paho's reconnect backoff.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ClientID == "" {
		c.ClientID = "tosca-" + uuid.NewString()[:8]
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ReconnectInitial == 0 {
		c.ReconnectInitial = time.Second
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = 30 * time.Second
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: empty host", ErrConnectionFailed)
	}
	if c.Port < 0 || c.Port > 0xffff {
		return fmt.Errorf("%w: invalid port %d", ErrConnectionFailed, c.Port)
	}
	if c.QoS > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// URL returns the broker URL, tcp:// or ssl:// depending on TLS.
func (c Config) URL() string {
	scheme := "tcp"
	if c.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// buildClientOptions creates paho MQTT options from cfg.
func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.URL())
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// Clean session - subscriptions are restored by the Client itself.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectRetryInterval(cfg.ReconnectInitial)
	opts.SetMaxReconnectInterval(cfg.ReconnectMax)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	configureLWT(opts, cfg)
	return opts
}

// Status is the retained presence message of a client.
type Status struct {
	State     string    `cbor:"1,keyasint"`
	ClientID  string    `cbor:"2,keyasint"`
	Reason    string    `cbor:"3,keyasint,omitempty"`
	Timestamp time.Time `cbor:"4,keyasint"`
}

// configureLWT makes the broker publish an offline status if the client
// disappears without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, cfg Config) {
	topic := Topics{Prefix: cfg.TopicPrefix}.Status(cfg.ClientID)
	payload, err := statusPayload(cfg.ClientID, "offline", "unexpected_disconnect")
	if err != nil {
		return
	}
	opts.SetBinaryWill(topic, payload, 1, true)
}

func statusPayload(clientID, state, reason string) ([]byte, error) {
	return wire.Marshal(Status{
		State:     state,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}
