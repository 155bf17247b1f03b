// Package fault classifies failures raised by activated code.
//
// A Kind is a string sentinel that survives serialization, so a failure
// raised inside an isolated worker can be matched with errors.Is by the host
// exactly as if the object had been constructed in-process. Errors created
// through a Kind record where they were raised (Origin) and the call stack at
// that point; Record is the wire form used to carry them across a process
// boundary with the cause chain intact.
//
// Usage:
//
//	var ErrBadSeed = fault.Kind("calc.BadSeed")
//
//	func NewCalc(seed int) (*Calc, error) {
//	    if seed < 0 {
//	        return nil, ErrBadSeed.New("seed %d is negative", seed)
//	    }
//	    ...
//	}
//
//	if errors.Is(err, calc.ErrBadSeed) { ... }
package fault
