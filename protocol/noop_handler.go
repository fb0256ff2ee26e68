package protocol

// NoOpHandler implements MessageHandler with no-op methods.
// Embed this and override only the methods you need.
type NoOpHandler struct{}

func (NoOpHandler) HandleDeviceHello(*Envelope, *DeviceHello)         {}
func (NoOpHandler) HandleDeviceHeartbeat(*Envelope, *DeviceHeartbeat) {}
func (NoOpHandler) HandleModelPublished(*Envelope, *ModelPublished)   {}

// Compile-time check that NoOpHandler implements MessageHandler.
var _ MessageHandler = NoOpHandler{}
