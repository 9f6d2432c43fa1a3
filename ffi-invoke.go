package ctypes

import (
	"errors"

	"github.com/jupiterrider/ffi"
)

// Invoke calls the native function at fn. Every argument is converted
// before the call is made, so a bad argument never reaches the native stack.
// The result is a new owned host value, or nil for a void return.
func (rt *Runtime) Invoke(fn uintptr, sig Signature, args []Value) (Value, error) {
	if len(args) != sig.NumParams() {
		return nil, &ArityError{Expected: sig.NumParams(), Actual: len(args)}
	}
	if sig.Return == nil {
		return nil, &SignatureError{Signature: sig.text, Kind: ErrTooShort}
	}

	f := newFrame(rt.host, len(args))
	defer f.release()

	for i, a := range args {
		if err := f.set(rt.marshal, i, a, sig.Params[i]); err != nil {
			var te *TypeError
			if errors.As(err, &te) {
				cp := *te
				cp.Index = i
				return nil, &cp
			}
			return nil, err
		}
	}

	var cif ffi.Cif
	argTypes := sig.ffiParams()
	if len(argTypes) > 0 {
		f.pin.Pin(&argTypes[0])
	}
	f.pin.Pin(&cif)
	if err := sig.prepCif(&cif, argTypes); err != nil {
		return nil, err
	}

	rt.log.Debugf("invoke %#x %s %v", fn, sig, f)
	ffi.Call(&cif, fn, f.retPtr(), f.argv...)

	if sig.NumResults() == 0 {
		return nil, nil
	}
	return rt.marshal.FromNative(loadReturn(f.retPtr(), sig.Return), sig.Return), nil
}

// Call parses sig and invokes fn with args.
func (rt *Runtime) Call(fn uintptr, sig string, args ...Value) (Value, error) {
	s, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	return rt.Invoke(fn, s, args)
}
