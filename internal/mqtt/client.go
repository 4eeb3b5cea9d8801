// Package mqtt connects to the printer's local MQTT broker and feeds its
// report topic into the tracker. Transport only: every message is handed
// to the tracker as opaque bytes and any per-message failure is logged and
// swallowed so the subscription lives on.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/colby/bambulog/internal/logger"
)

// Default credentials of the printer's embedded broker. The username is
// fixed by the firmware; only the access code varies per device.
const (
	brokerUsername = "bblp"
	connectTimeout = 30 * time.Second
)

// Handler consumes one raw report payload observed at the given time.
type Handler func(ctx context.Context, payload []byte, now time.Time) error

// Config holds the printer connection settings.
type Config struct {
	IP         string
	Port       int
	AccessCode string
	Serial     string
}

// Listener owns the broker connection and the report subscription.
type Listener struct {
	client paho.Client
	topic  string
	serial string
}

// NewListener creates a Listener wired to the given handler.
// Parameters:
//   - cfg: printer connection settings.
//   - handler: called once per received message; its errors are logged,
//     never propagated to the broker client.
// Returns:
//   - *Listener: listener ready to Connect.
func NewListener(cfg *Config, handler Handler) *Listener {
	topic := fmt.Sprintf("device/%s/report", cfg.Serial)

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tls://%s:%d", cfg.IP, cfg.Port)).
		SetClientID("bambulog-" + uuid.NewString()[:8]).
		SetUsername(brokerUsername).
		SetPassword(cfg.AccessCode).
		// The printer presents a self-signed certificate.
		SetTLSConfig(&tls.Config{InsecureSkipVerify: true}).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(c paho.Client) {
		logger.GetDefault().WithField(logger.FieldSerial, cfg.Serial).Info("Connected to printer, subscribing")
		// Resubscribe on every (re)connect: the embedded broker does not
		// persist sessions across printer reboots.
		token := c.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
			now := time.Now()
			if err := handler(context.Background(), msg.Payload(), now); err != nil {
				logger.GetDefault().WithError(err).Warn("Dropped report message")
			}
		})
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				logger.GetDefault().WithError(err).Error("Subscribe failed")
			}
		}()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.GetDefault().WithError(err).Warn("Printer connection lost, reconnecting")
	})

	return &Listener{
		client: paho.NewClient(opts),
		topic:  topic,
		serial: cfg.Serial,
	}
}

// Connect establishes the broker connection and blocks until it is up or
// the context is done.
// Parameters:
//   - ctx: bounds the initial connect attempt.
// Returns:
//   - error: non-nil if the connection could not be established.
func (l *Listener) Connect(ctx context.Context) error {
	token := l.client.Connect()
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to printer %s: %w", l.serial, err)
	}
	return nil
}

// Close unsubscribes and disconnects, letting in-flight handlers finish.
func (l *Listener) Close() {
	if l.client.IsConnected() {
		l.client.Unsubscribe(l.topic)
		l.client.Disconnect(500)
	}
}
