package protocol

// Message type constants.
const (
	// Edge -> Core (published on the status topic)
	TypeDeviceHello     = "device.hello"
	TypeDeviceHeartbeat = "device.heartbeat"

	// Core -> Edge (published on the model topic)
	TypeModelPublished = "model.published"
)

// Roles for Address.Role.
const (
	RoleEdge = "edge"
	RoleCore = "core"
)

// DeviceBroadcast addresses every edge device.
const DeviceBroadcast = "*"

// Protocol version.
const Version = 1
