package protocol

// --- Edge -> Core payloads ---

// DeviceHello is sent by an edge device on startup, after registration.
type DeviceHello struct {
	DeviceName   string `json:"device_name"`
	Hostname     string `json:"hostname"`
	Version      string `json:"version"`
	ModelVersion string `json:"model_version"`
}

// DeviceHeartbeat is sent periodically by an edge device.
type DeviceHeartbeat struct {
	DeviceName   string  `json:"device_name"`
	Uptime       int64   `json:"uptime_s"`
	WeightGrams  float64 `json:"weight_grams"`
	ModelVersion string  `json:"model_version"`
}

// --- Core -> Edge payloads ---

// ModelPublished announces that a new classifier model is available for
// download. Edges that see a different version should reconcile.
type ModelPublished struct {
	Version string `json:"version"`
}
