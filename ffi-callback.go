package ctypes

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/jupiterrider/ffi"
)

// Binding pairs a host callable with a native closure whose code address can
// be handed to C as a function pointer. The address is valid exactly until
// Release; native code must not call it afterwards.
type Binding struct {
	rt       *Runtime
	id       uint64
	sig      Signature
	callable Value

	cif      ffi.Cif
	argTypes []*ffi.Type
	closure  *ffi.Closure
	code     unsafe.Pointer
	pin      runtime.Pinner

	// active counts trampoline activations currently on the stack.
	active   atomic.Int32
	released atomic.Bool
	pending  atomic.Bool

	faultMu sync.Mutex
	fault   error
}

var (
	closureHandlerOnce sync.Once
	closureHandlerPtr  uintptr
)

// closureHandler returns the single Go entry point shared by every closure.
// Callbacks made with ffi.NewCallback can never be freed, so one is made for
// the whole process and bindings are told apart by their user data.
func closureHandler() uintptr {
	closureHandlerOnce.Do(func() {
		closureHandlerPtr = ffi.NewCallback(universalClosureHandler)
	})
	return closureHandlerPtr
}

func universalClosureHandler(cif *ffi.Cif, ret unsafe.Pointer, args *unsafe.Pointer, userData unsafe.Pointer) uintptr {
	b := (*Binding)(userData)
	var argv []unsafe.Pointer
	if n := len(b.sig.Params); n > 0 {
		argv = unsafe.Slice(args, n)
	}
	b.dispatch(ret, argv)
	return 0
}

// NewCallback wraps callable as a native function with signature sig. The
// binding retains callable until it is released.
func (rt *Runtime) NewCallback(callable Value, sig Signature) (*Binding, error) {
	if !rt.host.IsCallable(callable) {
		return nil, &CallableError{Value: callable}
	}
	if sig.Return == nil {
		return nil, &SignatureError{Signature: sig.text, Kind: ErrTooShort}
	}

	b := &Binding{
		rt:       rt,
		id:       rt.nextID.Add(1),
		sig:      sig,
		argTypes: sig.ffiParams(),
	}
	b.pin.Pin(b)
	if len(b.argTypes) > 0 {
		b.pin.Pin(&b.argTypes[0])
	}
	if err := sig.prepCif(&b.cif, b.argTypes); err != nil {
		b.pin.Unpin()
		return nil, &CallbackError{Kind: ErrPrep, Signature: sig.text, Err: err}
	}

	handler := closureHandler()
	b.closure = ffi.ClosureAlloc(unsafe.Sizeof(ffi.Closure{}), &b.code)
	if b.closure == nil {
		b.pin.Unpin()
		return nil, &CallbackError{Kind: ErrClosureAlloc, Signature: sig.text}
	}
	rt.allocated.Add(1)

	if st := ffi.PrepClosureLoc(b.closure, &b.cif, handler, unsafe.Pointer(b), b.code); st != ffi.OK {
		b.free()
		return nil, &CallbackError{Kind: ErrPrep, Signature: sig.text, Err: &FFIError{Op: "ffi_prep_closure_loc", Status: st}}
	}

	rt.host.Retain(callable)
	b.callable = callable
	rt.live.Store(b.id, b)
	rt.log.Debugf("callback %d %s at %#x", b.id, sig, uintptr(b.code))
	return b, nil
}

// CallbackFor parses sig and wraps callable.
func (rt *Runtime) CallbackFor(callable Value, sig string) (*Binding, error) {
	s, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	return rt.NewCallback(callable, s)
}

// ReleaseCallback releases b.
func (rt *Runtime) ReleaseCallback(b *Binding) error {
	if b == nil || b.rt != rt {
		return &CallbackError{Kind: ErrReleased, Err: fmt.Errorf("binding not owned by this runtime")}
	}
	return b.Release()
}

// Code is the C-callable address, or 0 once released.
func (b *Binding) Code() uintptr {
	if b.released.Load() {
		return 0
	}
	return uintptr(b.code)
}

func (b *Binding) Signature() Signature { return b.sig }

func (b *Binding) ID() uint64 { return b.id }

// Release frees the closure and drops the callable. A second call reports
// ErrReleased. Releasing from inside the binding's own trampoline defers the
// free until that activation returns.
func (b *Binding) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return &CallbackError{Kind: ErrReleased, Signature: b.sig.text}
	}
	b.rt.live.Delete(b.id)
	if b.active.Load() > 0 {
		b.pending.Store(true)
		return nil
	}
	b.free()
	return nil
}

// free returns the closure memory and the callable reference.
func (b *Binding) free() {
	if b.closure != nil {
		ffi.ClosureFree(b.closure)
		b.closure = nil
		b.code = nil
		b.rt.freed.Add(1)
	}
	if b.callable != nil {
		b.rt.host.Release(b.callable)
		b.callable = nil
	}
	b.pin.Unpin()
}

// LastError returns the most recent trampoline fault without clearing it.
func (b *Binding) LastError() error {
	b.faultMu.Lock()
	defer b.faultMu.Unlock()
	return b.fault
}

// TakeError returns and clears the most recent trampoline fault.
func (b *Binding) TakeError() error {
	b.faultMu.Lock()
	defer b.faultMu.Unlock()
	err := b.fault
	b.fault = nil
	return err
}

func (b *Binding) String() string {
	return fmt.Sprintf("Callback(%d %s %#x)", b.id, b.sig, b.Code())
}

// dispatch runs on the native caller's thread. Nothing may unwind out of it:
// every error and panic ends here as a zeroed return and a recorded fault.
func (b *Binding) dispatch(ret unsafe.Pointer, argv []unsafe.Pointer) {
	rt := b.rt
	rtype := b.sig.Return
	b.active.Add(1)
	defer func() {
		if r := recover(); r != nil {
			b.recordFault(ret, fmt.Errorf("panic: %v", r))
		}
		if b.active.Add(-1) == 0 && b.pending.CompareAndSwap(true, false) {
			b.free()
		}
	}()

	args := make(ValueList, len(argv))
	defer func() {
		for _, a := range args {
			if a != nil {
				rt.host.Release(a)
			}
		}
	}()
	for i, p := range argv {
		t := b.sig.Params[i]
		args[i] = rt.marshal.FromNative(loadScalar(p, t), t)
	}

	res, err := rt.CallHost(b.callable, args)
	if err != nil {
		b.recordFault(ret, err)
		return
	}
	if res != nil {
		defer rt.host.Release(res)
	}
	if rtype.IsVoid() {
		return
	}
	s, err := rt.marshal.ToNative(res, rtype, nil)
	if err != nil {
		b.recordFault(ret, err)
		return
	}
	storeReturn(ret, rtype, s)
}

func (b *Binding) recordFault(ret unsafe.Pointer, err error) {
	zeroReturn(ret, b.sig.Return)
	cerr := &CallbackError{Kind: ErrTrampolineFault, Signature: b.sig.text, Err: err}
	b.faultMu.Lock()
	b.fault = cerr
	b.faultMu.Unlock()
	b.rt.log.Warnf("callback %d %s: %v", b.id, b.sig, err)
	if b.rt.onFault != nil {
		func() {
			defer func() { _ = recover() }()
			b.rt.onFault(b, cerr)
		}()
	}
}
