package fractalx

// DispatchData addresses one input of one component with a payload.
type DispatchData struct {
	ID      string `json:"id" yaml:"id"`
	Input   string `json:"input" yaml:"input"`
	Payload any    `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// EventData is an unresolved DispatchData. It is usually embedded in an
// interface value and resolved when the external trigger fires.
type EventData struct {
	ID    string           `json:"id" yaml:"id"`
	Input string           `json:"input" yaml:"input"`
	Param func(in any) any `json:"-" yaml:"-"`
}

// Resolve turns the event into dispatchable data. When Param is set it
// transforms the raw trigger payload first.
func (e EventData) Resolve(payload any) DispatchData {
	if e.Param != nil {
		payload = e.Param(payload)
	}
	return DispatchData{ID: e.ID, Input: e.Input, Payload: payload}
}

// Ev builds an EventData addressing input of the component at ctx.
func Ev(ctx *Context, input string, param ...func(any) any) EventData {
	ev := EventData{ID: ctx.ID(), Input: input}
	if len(param) > 0 {
		ev.Param = param[0]
	}
	return ev
}
