package fractalx

import (
	"errors"
	"fmt"
)

// Failure kinds reported through the diagnostics log. None of them is fatal:
// the failing step is skipped and a safe default is returned.
var (
	// ErrAddressNotFound: dispatch, stateOf or interfaceOf targeted an id with no component space.
	ErrAddressNotFound = errors.New("address not found")
	// ErrHandlerNotFound: unknown input name on a real component, or unknown task name.
	ErrHandlerNotFound = errors.New("handler not found")
	// ErrInterfaceNotFound: the interface name is not declared on the target definition.
	ErrInterfaceNotFound = errors.New("interface not found")
	// ErrOverwrite: merge replaced an existing id. Logged as a warning.
	ErrOverwrite = errors.New("component overwritten")
	// ErrMissingInterfaceHandler: a root interface has no handler factory.
	ErrMissingInterfaceHandler = errors.New("missing interface handler")
	// ErrUnmergeInvariant: unmerge was called on an id that is not in the index.
	ErrUnmergeInvariant = errors.New("unmerge invariant violated")
	// ErrActionNotFound: toAct named an action the definition does not declare.
	ErrActionNotFound = errors.New("action not found")
	// ErrQueueFull: the module dispatch queue rejected work.
	ErrQueueFull = errors.New("dispatch queue full")
)

// Diagnostic is one entry of the warning or error log.
// Source and Message are part of the observable contract; Kind classifies it.
type Diagnostic struct {
	Source  string
	Message string
	Kind    error
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("source: %s, description: %s", d.Source, d.Message)
}

func (d *Diagnostic) Unwrap() error {
	return d.Kind
}
