package messaging

import (
	"fmt"
	"log"

	"checkweigh/protocol"
)

// Notifier broadcasts model publication notices to the fleet.
type Notifier struct {
	client *Client
	topic  string
}

func NewNotifier(client *Client, modelTopic string) *Notifier {
	return &Notifier{client: client, topic: modelTopic}
}

// PublishModelNotice tells every device a new model version is live.
// Devices that miss the broadcast still converge on their periodic
// reconcile, so a publish failure is not fatal to the rollout.
func (n *Notifier) PublishModelNotice(version string) error {
	env, err := protocol.NewEnvelope(
		protocol.TypeModelPublished,
		protocol.Address{Role: protocol.RoleCore},
		protocol.Address{Role: protocol.RoleEdge, Device: protocol.DeviceBroadcast},
		&protocol.ModelPublished{Version: version},
	)
	if err != nil {
		return fmt.Errorf("build model notice: %w", err)
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode model notice: %w", err)
	}
	if err := n.client.Publish(n.topic, data); err != nil {
		return fmt.Errorf("publish model notice: %w", err)
	}
	log.Printf("messaging: announced model %s", version)
	return nil
}
