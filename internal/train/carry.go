package train

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/optim"
)

// Carry is the state threaded from one step to the next.
//
// Every step returns a new Carry with exactly the same structure (names,
// shapes and optimizer slots) as the one it received.
type Carry struct {
	Params nn.Params
	State  optim.State
}

// SameStructure checks that next can replace c.
func (c Carry) SameStructure(next Carry) error {
	if err := c.Params.SameStructure(next.Params); err != nil {
		return fmt.Errorf("carry params: %w", err)
	}
	if err := c.State.SameStructure(next.State); err != nil {
		return fmt.Errorf("carry state: %w", err)
	}
	return nil
}
