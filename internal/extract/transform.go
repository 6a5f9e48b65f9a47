package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/pagesentry/pagesentry/internal/shared/value"
)

// ErrTransformTimeout means a transform expression exceeded its time budget.
var ErrTransformTimeout = errors.New("transform timed out")

const (
	transformPoolSize = 4
	transformTimeout  = 250 * time.Millisecond
)

// Transformer runs precompiled transform expressions against raw matched
// text in pooled, isolated goja runtimes. The runtimes expose no host
// bindings beyond the `raw` string, so an expression cannot touch the
// filesystem or the network.
type Transformer struct {
	vms     chan *goja.Runtime
	timeout time.Duration
}

// NewTransformer creates a transformer with a fixed runtime pool.
func NewTransformer() *Transformer {
	t := &Transformer{
		vms:     make(chan *goja.Runtime, transformPoolSize),
		timeout: transformTimeout,
	}
	for i := 0; i < transformPoolSize; i++ {
		t.vms <- goja.New()
	}
	return t
}

// Apply evaluates the program with the raw text bound as `raw` and converts
// the expression result into a tagged Value.
func (t *Transformer) Apply(ctx context.Context, prog *goja.Program, raw string) (value.Value, error) {
	var vm *goja.Runtime
	select {
	case vm = <-t.vms:
	case <-ctx.Done():
		return value.Null(), ctx.Err()
	}
	defer func() { t.vms <- vm }()

	if err := vm.Set("raw", raw); err != nil {
		return value.Null(), fmt.Errorf("transform: %w", err)
	}

	timer := time.AfterFunc(t.timeout, func() {
		vm.Interrupt(ErrTransformTimeout)
	})
	// the timer must be dead before the interrupt is cleared, or a late
	// firing leaves the pooled runtime interrupted for its next user
	defer func() {
		timer.Stop()
		vm.ClearInterrupt()
	}()

	result, err := vm.RunProgram(prog)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return value.Null(), ErrTransformTimeout
		}
		return value.Null(), fmt.Errorf("transform: %w", err)
	}

	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return value.Null(), nil
	}
	return value.FromAny(result.Export()), nil
}
