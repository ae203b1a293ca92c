package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/icesealed/wyvern/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial dial in Connect.
	connectTimeout = 10 * time.Second

	// publishTimeout bounds publish, subscribe, and unsubscribe
	// acknowledgements.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is how long Close lets in-flight messages
	// drain, in milliseconds (paho's unit).
	disconnectQuiesce = 1000

	keepAlive = 60 * time.Second
	maxQoS    = 2
)

// clientOptions maps our config onto paho's. Reconnection is paho's job:
// connect-retry covers a broker that is down at startup, auto-reconnect
// covers drops after, both pacing between the configured delays.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}
