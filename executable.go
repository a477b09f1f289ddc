package fractalx

// Executable is what an input handler returns. It is exactly one of
// Update, Task or List.
type Executable interface {
	executable()
}

// Update is a pure state transition.
type Update func(state any) any

// Task asks the runner registered under Name to do work with Data.
type Task struct {
	Name string
	Data any
}

// List is an ordered sequence of updates and tasks applied left to right.
type List []Executable

func (Update) executable() {}
func (Task) executable()   {}
func (List) executable()   {}

// NewTask builds a Task executable.
func NewTask(name string, data any) Task {
	return Task{Name: name, Data: data}
}

// UpdateOf adapts a typed transition to an Update. A state of another type is
// passed to fn as the zero value of S.
func UpdateOf[S any](fn func(S) S) Update {
	return func(state any) any {
		s, _ := state.(S)
		return fn(s)
	}
}
