package devstate

import "time"

// DeviceLive is the volatile view of a device: what the latest hello or
// heartbeat reported. The durable registration lives in SQL.
type DeviceLive struct {
	DeviceName   string    `json:"device_name"`
	Hostname     string    `json:"hostname,omitempty"`
	Version      string    `json:"version,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	WeightGrams  float64   `json:"weight_grams"`
	Uptime       int64     `json:"uptime"`
	LastSeen     time.Time `json:"last_seen"`
	Status       string    `json:"status"`
}
