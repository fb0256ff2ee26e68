package telemetry

import (
	"log"

	"checkweigh/protocol"
)

// Kicker triggers a model reconcile cycle.
type Kicker interface {
	Kick()
}

// Subscriber listens for model publication notices and triggers a sync.
type Subscriber struct {
	client     *Client
	topic      string
	deviceName string
	ingestor   *protocol.Ingestor
}

type modelNoticeHandler struct {
	protocol.NoOpHandler
	syncer Kicker
}

func (h *modelNoticeHandler) HandleModelPublished(env *protocol.Envelope, p *protocol.ModelPublished) {
	log.Printf("telemetry: model %s published, triggering sync", p.Version)
	h.syncer.Kick()
}

// NewSubscriber creates a subscriber that kicks the syncer on model notices
// addressed to this device or broadcast.
func NewSubscriber(client *Client, modelTopic, deviceName string, syncer Kicker) *Subscriber {
	handler := &modelNoticeHandler{syncer: syncer}
	filter := func(hdr *protocol.RawHeader) bool {
		if hdr.Dst.Role != protocol.RoleEdge {
			return false
		}
		return hdr.Dst.Device == "" ||
			hdr.Dst.Device == protocol.DeviceBroadcast ||
			hdr.Dst.Device == deviceName
	}
	return &Subscriber{
		client:     client,
		topic:      modelTopic,
		deviceName: deviceName,
		ingestor:   protocol.NewIngestor(handler, filter),
	}
}

// Start subscribes to the model topic.
func (s *Subscriber) Start() error {
	return s.client.Subscribe(s.topic, s.ingestor.HandleRaw)
}
