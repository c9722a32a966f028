package gameserver

// ProtocolError is a precondition failure reported verbatim to the requester.
// The connection stays open and no state changes.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// Precondition failures. Compare with errors.Is.
var (
	ErrInvalidUsername = &ProtocolError{Message: "Invalid username"}
	ErrUsernameTaken   = &ProtocolError{Message: "Username already taken"}
	ErrServerFull      = &ProtocolError{Message: "Server is full"}
	ErrAlreadyJoined   = &ProtocolError{Message: "Already joined"}
	ErrNPCNotFound     = &ProtocolError{Message: "NPC not found"}
	ErrTooFar          = &ProtocolError{Message: "Too far from NPC"}
)

// Generic replies for faults that are not precondition failures.
const (
	MsgInvalidFormat = "Invalid message format"
	MsgServerError   = "Server error"
)
