package telemetry

import (
	"log"
	"os"
	"sync"
	"time"

	"checkweigh/edge/store"
	"checkweigh/protocol"
)

// WeightSource reports the current stabilized weight in grams.
type WeightSource interface {
	CurrentWeight() float64
}

// VersionSource reports the installed model version, empty if none.
// The model syncer satisfies this.
type VersionSource interface {
	LocalVersion() string
}

// Heartbeater sends device.hello on startup and device.heartbeat periodically.
// Publishes that fail while the broker is down land in the local outbox.
type Heartbeater struct {
	client     *Client
	db         *store.DB
	deviceName string
	version    string
	topic      string
	interval   time.Duration
	weights    WeightSource
	model      VersionSource
	startTime  time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHeartbeater creates a heartbeater for the given device identity.
// db may be nil, in which case failed publishes are only logged.
func NewHeartbeater(client *Client, db *store.DB, deviceName, version, statusTopic string, interval time.Duration, weights WeightSource, model VersionSource) *Heartbeater {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Heartbeater{
		client:     client,
		db:         db,
		deviceName: deviceName,
		version:    version,
		topic:      statusTopic,
		interval:   interval,
		weights:    weights,
		model:      model,
		stopCh:     make(chan struct{}),
	}
}

// Start sends an initial hello and begins the heartbeat loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.sendHello()
	h.wg.Add(1)
	go h.loop()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}

func (h *Heartbeater) sendHello() {
	hostname, _ := os.Hostname()
	env, err := protocol.NewEnvelope(
		protocol.TypeDeviceHello,
		protocol.Address{Role: protocol.RoleEdge, Device: h.deviceName},
		protocol.Address{Role: protocol.RoleCore},
		&protocol.DeviceHello{
			DeviceName:   h.deviceName,
			Hostname:     hostname,
			Version:      h.version,
			ModelVersion: h.model.LocalVersion(),
		},
	)
	if err != nil {
		log.Printf("heartbeater: build hello: %v", err)
		return
	}
	if err := h.publishOrEnqueue(env); err != nil {
		log.Printf("heartbeater: send hello: %v", err)
	} else {
		log.Printf("heartbeater: sent device.hello (device=%s)", h.deviceName)
	}
}

func (h *Heartbeater) sendHeartbeat() {
	uptime := int64(time.Since(h.startTime).Seconds())
	env, err := protocol.NewEnvelope(
		protocol.TypeDeviceHeartbeat,
		protocol.Address{Role: protocol.RoleEdge, Device: h.deviceName},
		protocol.Address{Role: protocol.RoleCore},
		&protocol.DeviceHeartbeat{
			DeviceName:   h.deviceName,
			Uptime:       uptime,
			WeightGrams:  h.weights.CurrentWeight(),
			ModelVersion: h.model.LocalVersion(),
		},
	)
	if err != nil {
		log.Printf("heartbeater: build heartbeat: %v", err)
		return
	}
	if err := h.publishOrEnqueue(env); err != nil {
		log.Printf("heartbeater: send heartbeat: %v", err)
	}
}

func (h *Heartbeater) publishOrEnqueue(env *protocol.Envelope) error {
	err := h.client.PublishEnvelope(h.topic, env)
	if err == nil {
		return nil
	}
	if h.db == nil {
		return err
	}
	data, encErr := env.Encode()
	if encErr != nil {
		return err
	}
	if _, qErr := h.db.EnqueueOutbox(h.topic, data, env.Type); qErr != nil {
		log.Printf("heartbeater: enqueue outbox: %v", qErr)
		return err
	}
	log.Printf("heartbeater: broker unavailable, queued %s", env.Type)
	return nil
}

func (h *Heartbeater) loop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}
