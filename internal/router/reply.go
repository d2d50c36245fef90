package router

// Reply states.
const (
	StateSuccess = "success"
	StateError   = "error"
)

// Reply is the envelope sent back to a client in answer to a message.
type Reply struct {
	Context ReplyContext `json:"context"`
	Data    any          `json:"data"`
}

// ReplyContext carries correlation data for a Reply.
type ReplyContext struct {
	ClientCallbackName string `json:"client_callback_name,omitempty"`
	State              string `json:"state"`
}

// Respond sends data to c as a successful reply to args.
func Respond(c Caller, args Args, data any) error {
	return c.Send(newReply(args, StateSuccess, data))
}

// RespondError sends data to c as an error reply to args.
func RespondError(c Caller, args Args, data any) error {
	return c.Send(newReply(args, StateError, data))
}

func newReply(args Args, state string, data any) Reply {
	return Reply{
		Context: ReplyContext{
			ClientCallbackName: args.CallbackName(),
			State:              state,
		},
		Data: data,
	}
}
