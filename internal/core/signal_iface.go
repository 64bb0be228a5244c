package core

// Frame is a raw binary payload.
type Frame []byte

// SignalSender is the shared send channel into the event stream.
// Fire-and-forget: implementations drop the payload when the
// connection is not currently open.
type SignalSender interface {
	Send(v any) error
}
