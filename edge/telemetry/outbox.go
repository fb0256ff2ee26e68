package telemetry

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"checkweigh/edge/store"
	"checkweigh/protocol"
)

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       *store.DB
	client   *Client
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewOutboxDrainer creates a new outbox drainer.
func NewOutboxDrainer(db *store.DB, client *Client, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the outbox drain loop.
func (d *OutboxDrainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the outbox drain loop.
func (d *OutboxDrainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *OutboxDrainer) drainLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

func (d *OutboxDrainer) drain() {
	if !d.client.IsConnected() {
		return
	}

	msgs, err := d.db.ListPendingOutbox(50)
	if err != nil {
		log.Printf("list pending outbox: %v", err)
		return
	}

	for _, msg := range msgs {
		// A heartbeat queued through a long outage is stale by the
		// time the broker is back; ack it without sending.
		if expired(msg.Payload) {
			if err := d.db.AckOutbox(msg.ID); err != nil {
				log.Printf("ack expired outbox msg %d: %v", msg.ID, err)
			}
			continue
		}
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			log.Printf("publish outbox msg %d: %v", msg.ID, err)
			d.db.IncrementOutboxRetries(msg.ID)
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			log.Printf("ack outbox msg %d: %v", msg.ID, err)
		}
	}
}

// expired reports whether a queued payload is an envelope past its
// expiry. Payloads that do not decode are treated as fresh.
func expired(payload []byte) bool {
	var env protocol.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false
	}
	return protocol.IsExpired(&env)
}
