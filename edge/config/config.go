package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level edge configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	DeviceName     string `yaml:"device_name"`
	CoreURL        string `yaml:"core_url"`
	SharedSecret   string `yaml:"shared_secret"`
	CredentialFile string `yaml:"credential_file"`
	DatabasePath   string `yaml:"database_path"`
	TLSSkipVerify  bool   `yaml:"tls_skip_verify"`

	Scale      ScaleConfig      `yaml:"scale"`
	Camera     CameraConfig     `yaml:"camera"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Model      ModelConfig      `yaml:"model"`
	Web        WebConfig        `yaml:"web"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ScaleConfig defines the load cell calibration and sampling window.
type ScaleConfig struct {
	X0             float64       `yaml:"x0"`
	X1             float64       `yaml:"x1"`
	ReferenceGrams float64       `yaml:"reference_grams"`
	SamplesPerRead int           `yaml:"samples_per_read"`
	Interval       time.Duration `yaml:"interval"`
	StaticRaw      float64       `yaml:"static_raw"` // bench mode reading when no cell is attached
}

// CameraConfig defines the capture command.
type CameraConfig struct {
	Command    string `yaml:"command"`
	OutputPath string `yaml:"output_path"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	ImageFile  string `yaml:"image_file"` // when set, serve this file instead of capturing
}

// ClassifierConfig defines the external inference command.
type ClassifierConfig struct {
	Command string `yaml:"command"`
}

// ModelConfig defines where the classifier artifact lives and how often
// it is reconciled against the core.
type ModelConfig struct {
	Dir               string        `yaml:"dir"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// WebConfig defines the local web server settings.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TelemetryConfig defines the broker used for heartbeats and model
// announcements.
type TelemetryConfig struct {
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	StatusTopic         string        `yaml:"status_topic"`
	ModelTopic          string        `yaml:"model_topic"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// Defaults returns a Config with sane defaults. The calibration anchors
// default to the bench load cell used on the reference rig.
func Defaults() *Config {
	return &Config{
		DeviceName:     "rpi1",
		CoreURL:        "http://localhost:8080",
		SharedSecret:   "",
		CredentialFile: "cwedge.key",
		DatabasePath:   "cwedge.db",
		Scale: ScaleConfig{
			X0:             10,
			X1:             393600,
			ReferenceGrams: 227,
			SamplesPerRead: 10,
			Interval:       200 * time.Millisecond,
			StaticRaw:      10,
		},
		Camera: CameraConfig{
			Command:    "libcamera-jpeg",
			OutputPath: "/tmp/product.jpg",
			Width:      640,
			Height:     480,
		},
		Classifier: ClassifierConfig{
			Command: "cwclassify",
		},
		Model: ModelConfig{
			Dir:               "model",
			ReconcileInterval: 10 * time.Minute,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8081,
		},
		Telemetry: TelemetryConfig{
			Backend:             "mqtt",
			StatusTopic:         "checkweigh/status",
			ModelTopic:          "checkweigh/model",
			HeartbeatInterval:   60 * time.Second,
			OutboxDrainInterval: 5 * time.Second,
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ClientID returns the telemetry client ID, defaulting to the device name.
func (c *Config) ClientID() string {
	if c.Telemetry.MQTT.ClientID != "" {
		return c.Telemetry.MQTT.ClientID
	}
	return "cwedge-" + c.DeviceName
}
