package bridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.BridgeService/client"
	config "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Config"
	logger "gitlab.com/fieldsense/sh.telemetry_server/src/production/SH.Logger"
)

// sensorMessage is the payload shape devices publish over MQTT.
// device_id and timestamp are optional: the topic and receive time
// fill them in when absent.
type sensorMessage struct {
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	DeviceID    string     `json:"device_id"`
	Timestamp   *time.Time `json:"timestamp"`
}

type queuedReading struct {
	Request client.IngestRequest
	Topic   string
}

// Bridge subscribes to the sensor topic tree and forwards readings to
// the API Service ingest endpoint in batches.
type Bridge struct {
	cfg        *config.BridgeConfig
	apiClient  *client.APIClient
	mqttClient mqtt.Client
	msgCh      chan queuedReading
	wg         sync.WaitGroup
	logger     *logger.Logger
}

func New(cfg *config.BridgeConfig, apiClient *client.APIClient, logger *logger.Logger) *Bridge {
	return &Bridge{
		cfg:       cfg,
		apiClient: apiClient,
		msgCh:     make(chan queuedReading, 4096),
		logger:    logger,
	}
}

func (b *Bridge) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.GetMQTTBrokerURL()).
		SetClientID(b.cfg.MQTT.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(b.cfg.MQTT.KeepAlive).
		SetPingTimeout(b.cfg.MQTT.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if b.cfg.MQTT.BrokerUser != "" {
		opts.SetUsername(b.cfg.MQTT.BrokerUser)
		opts.SetPassword(b.cfg.MQTT.BrokerPass)
	}

	if b.cfg.MQTT.UseTLS {
		tlsCfg, err := b.tlsConfig(b.cfg.MQTT.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := b.cfg.MQTT.Topic
		if b.cfg.MQTT.SharedGroup != "" {
			topic = fmt.Sprintf("$share/%s/%s", b.cfg.MQTT.SharedGroup, b.cfg.MQTT.Topic)
		}
		b.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, b.onMessage); token.Wait() && token.Error() != nil {
			b.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	b.mqttClient = mqtt.NewClient(opts)
	if tk := b.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	// batch writer
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.batchWriter(ctx)
	}()

	return nil
}

func (b *Bridge) Stop() {
	if b.mqttClient != nil && b.mqttClient.IsConnected() {
		b.mqttClient.Disconnect(500)
	}
	close(b.msgCh)
	b.wg.Wait()
}

func (b *Bridge) IsConnected() bool {
	return b.mqttClient != nil && b.mqttClient.IsConnected()
}

func (b *Bridge) onMessage(_ mqtt.Client, m mqtt.Message) {
	b.logger.Logger.Debug().Str("topic", m.Topic()).Str("payload", string(m.Payload())).Msg("Received MQTT message")

	var msg sensorMessage
	if err := json.Unmarshal(m.Payload(), &msg); err != nil {
		b.logger.Logger.Warn().Err(err).Str("topic", m.Topic()).Msg("Dropping malformed MQTT payload")
		b.publishError(deviceIDFromTopic(m.Topic()), "malformed_payload", fmt.Sprintf("Failed to parse payload on %s: %v", m.Topic(), err))
		return
	}

	deviceID := msg.DeviceID
	if deviceID == "" {
		deviceID = deviceIDFromTopic(m.Topic())
	}

	if msg.Temperature == nil || msg.Humidity == nil {
		b.logger.Logger.Warn().Str("topic", m.Topic()).Str("device_id", deviceID).Msg("Dropping payload without both temperature and humidity")
		b.publishError(deviceID, "incomplete_payload", "Payload must carry both temperature and humidity")
		return
	}

	req := client.IngestRequest{
		Temperature: *msg.Temperature,
		Humidity:    *msg.Humidity,
		DeviceID:    deviceID,
		Timestamp:   msg.Timestamp,
	}
	if req.Timestamp == nil {
		now := time.Now().UTC()
		req.Timestamp = &now
	}

	b.logger.Logger.Debug().Str("device_id", deviceID).Msg("Queuing reading")
	b.msgCh <- queuedReading{Request: req, Topic: m.Topic()}
}

// deviceIDFromTopic extracts the device id from a sensors/<device_id>/...
// topic. Returns "" when the topic carries no device segment.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 && parts[0] == "sensors" {
		return parts[1]
	}
	return ""
}

func (b *Bridge) batchWriter(ctx context.Context) {
	batch := make([]queuedReading, 0, b.cfg.Batch.Size)
	timer := time.NewTimer(b.cfg.Batch.Window)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		b.logger.Logger.Info().Int("batch_size", len(batch)).Msg("Flushing batch to API Service")

		for _, qr := range batch {
			if err := b.apiClient.IngestReading(ctx, qr.Request); err != nil {
				b.logger.Logger.Error().Err(err).Str("device_id", qr.Request.DeviceID).Str("topic", qr.Topic).Msg("Error submitting reading via API")
				b.publishError(qr.Request.DeviceID, "ingest_error", fmt.Sprintf("Failed to submit reading: %v", err))
			}
		}

		b.logger.Logger.Info().Int("count", len(batch)).Msg("Processed readings")
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case rd, ok := <-b.msgCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rd)
			if len(batch) >= b.cfg.Batch.Size {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(b.cfg.Batch.Window)
			}
		case <-timer.C:
			flush()
			timer.Reset(b.cfg.Batch.Window)
		}
	}
}

func (b *Bridge) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

// publishError publishes an error message to the error topic for device feedback
func (b *Bridge) publishError(deviceID, errorType, message string) {
	if b.mqttClient == nil || !b.mqttClient.IsConnected() {
		return
	}
	if deviceID == "" {
		deviceID = "unknown"
	}

	errorPayload := map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"device_id":  deviceID,
		"timestamp":  time.Now().UTC(),
	}

	payloadJSON, err := json.Marshal(errorPayload)
	if err != nil {
		b.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := fmt.Sprintf("bridge/errors/%s", deviceID)
	token := b.mqttClient.Publish(errorTopic, 1, false, payloadJSON)

	if token.Wait() && token.Error() != nil {
		b.logger.Logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	}
}
