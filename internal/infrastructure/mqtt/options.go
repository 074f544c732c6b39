package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/stflabs/warehouse-core/internal/infrastructure/config"
)

// Timeouts and limits for MQTT operations.
const (
	// defaultConnectTimeout bounds the initial broker connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds publish/subscribe token waits.
	defaultPublishTimeout = 5 * time.Second

	// defaultKeepAlive is the MQTT keep-alive interval.
	defaultKeepAlive = 30 * time.Second

	// disconnectQuiesceMS is the grace period for in-flight messages on disconnect.
	disconnectQuiesceMS = 250

	// maxQoS is the highest valid MQTT QoS level.
	maxQoS = 2
)

// buildClientOptions translates our config into paho client options.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = "warehouse-core"
	}
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	if cfg.Reconnect.InitialDelay > 0 {
		opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	}
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	// Order matters on the hardware bus: device status messages must arrive
	// in publish order for the controller's ack tracking.
	opts.SetOrderMatters(true)

	return opts
}

// configureLWT sets the Last Will and Testament so subscribers learn when
// the controller drops off the bus uncleanly.
func configureLWT(opts *pahomqtt.ClientOptions) {
	opts.SetWill(Topics{}.SystemStatus(), `{"status":"offline"}`, 1, true)
}
