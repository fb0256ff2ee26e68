package messaging

import (
	"log"

	"checkweigh/core/devstate"
	"checkweigh/protocol"
)

// CoreHandler routes inbound edge status messages into the device state
// manager. Model notices are outbound only and ignored here.
type CoreHandler struct {
	protocol.NoOpHandler

	devices *devstate.Manager
}

func NewCoreHandler(devices *devstate.Manager) *CoreHandler {
	return &CoreHandler{devices: devices}
}

func (h *CoreHandler) HandleDeviceHello(env *protocol.Envelope, p *protocol.DeviceHello) {
	log.Printf("messaging: hello from %s (host=%s version=%s model=%s)",
		p.DeviceName, p.Hostname, p.Version, p.ModelVersion)
	h.devices.RecordHello(p.DeviceName, p.Hostname, p.Version, p.ModelVersion)
}

func (h *CoreHandler) HandleDeviceHeartbeat(env *protocol.Envelope, p *protocol.DeviceHeartbeat) {
	h.devices.RecordHeartbeat(p.DeviceName, p.Uptime, p.WeightGrams, p.ModelVersion)
}

// Consumer subscribes to the status topic and feeds the ingestor.
type Consumer struct {
	client   *Client
	topic    string
	ingestor *protocol.Ingestor
}

func NewConsumer(client *Client, statusTopic string, handler protocol.MessageHandler) *Consumer {
	filter := func(hdr *protocol.RawHeader) bool {
		return hdr.Dst.Role == protocol.RoleCore
	}
	return &Consumer{
		client:   client,
		topic:    statusTopic,
		ingestor: protocol.NewIngestor(handler, filter),
	}
}

func (c *Consumer) Start() error {
	return c.client.Subscribe(c.topic, c.ingestor.HandleRaw)
}
