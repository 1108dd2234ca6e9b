package vm

import "github.com/hemashushu/ancvm/loader"

// checkResultShape enforces spec.md §4.4.3's "every block that produces
// values requires the operand stack to hold exactly the result operands at
// its exit" when Debug is enabled; the assembler guarantees this statically
// so it is skipped by default (SPEC_FULL.md §4.4, "costs nothing in the hot
// path").
func (t *Thread) checkResultShape(resultTypes []loader.ValueType, stackBase int) *Trap {
	if !t.Debug {
		return nil
	}
	if t.stack.len()-stackBase != len(resultTypes) {
		return t.trap(TrapTypeMismatch, uint32(len(resultTypes)))
	}
	return nil
}

// copyResultsDown moves the top len(resultTypes) operand-stack slots down
// to stackBase and truncates the stack there, discarding whatever the
// exiting frame left above its declared results.
func (t *Thread) copyResultsDown(resultTypes []loader.ValueType, stackBase int) {
	n := len(resultTypes)
	height := t.stack.len()
	if n > 0 {
		copy(t.stack.slots[stackBase:stackBase+n], t.stack.slots[height-n:height])
	}
	t.stack.truncate(stackBase + n)
}
