package ctypes

import (
	"encoding/binary"
	"errors"
	"testing"
	"unsafe"
)

func TestCallback_Doubling(t *testing.T) {
	rt := New(nil)
	b, err := rt.CallbackFor(func(x int64) int64 { return x * 2 }, "cii")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer b.Release()

	if b.Code() == 0 {
		t.Fatal("binding has no code address")
	}
	res, err := rt.Invoke(b.Code(), b.Signature(), []Value{21})
	if err != nil || res != int64(42) {
		t.Errorf("doubling(21) = %v, %v, want 42", res, err)
	}
	if b.TakeError() != nil {
		t.Errorf("unexpected fault: %v", b.LastError())
	}
}

func TestCallback_TwoArguments(t *testing.T) {
	rt := New(nil)
	b, err := rt.CallbackFor(func(a, c int64) int64 { return a + c }, "ciii")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer b.Release()

	res, err := rt.Invoke(b.Code(), b.Signature(), []Value{3, 4})
	if err != nil || res != int64(7) {
		t.Errorf("add(3, 4) = %v, %v, want 7", res, err)
	}
	for _, args := range [][]Value{{1}, {1, 2, 3}} {
		_, err := rt.Invoke(b.Code(), b.Signature(), args)
		var ae *ArityError
		if !errors.As(err, &ae) || ae.Expected != 2 || ae.Actual != len(args) {
			t.Errorf("%d args: error = %v, want arity mismatch expecting 2", len(args), err)
		}
	}
}

func TestCallback_FloatsAndVoid(t *testing.T) {
	rt := New(nil)
	b, err := rt.CallbackFor(func(x float64, y float64) float64 { return x * y }, "cdfd")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer b.Release()
	res, err := rt.Invoke(b.Code(), b.Signature(), []Value{0.5, 8.0})
	if err != nil || res != 4.0 {
		t.Errorf("mul = %v, %v, want 4", res, err)
	}

	var seen int64
	v, err := rt.CallbackFor(func(x int64) { seen = x }, "cvs")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer v.Release()
	res, err = rt.Invoke(v.Code(), v.Signature(), []Value{-3})
	if err != nil || res != nil || seen != -3 {
		t.Errorf("void callback = %v, %v, seen %d", res, err, seen)
	}
}

func TestCallback_NotCallable(t *testing.T) {
	rt := New(nil)
	before := rt.Stats()
	_, err := rt.CallbackFor(42, "cii")
	if !errors.Is(err, ErrNotCallable) {
		t.Errorf("error = %v, want ErrNotCallable", err)
	}
	if after := rt.Stats(); after != before {
		t.Errorf("stats changed: %+v -> %+v", before, after)
	}
}

func TestCallback_NilHostFunc(t *testing.T) {
	rt := New(nil)
	before := rt.Stats()
	b, err := rt.CallbackFor(HostFunc(nil), "cii")
	if !errors.Is(err, ErrNotCallable) || b != nil {
		t.Errorf("CallbackFor(nil HostFunc) = %v, %v, want ErrNotCallable", b, err)
	}
	if after := rt.Stats(); after != before {
		t.Errorf("stats changed: %+v -> %+v", before, after)
	}
}

func TestCallback_BadSignature(t *testing.T) {
	rt := New(nil)
	if _, err := rt.CallbackFor(func() {}, "cvv"); !errors.Is(err, ErrBadParameterType) {
		t.Errorf("error = %v, want ErrBadParameterType", err)
	}
}

func TestCallback_ReleaseTwice(t *testing.T) {
	h := newRefHost()
	rt := New(h)
	b, err := rt.CallbackFor(func() {}, "cv")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	if h.live != 1 {
		t.Errorf("callable refs = %d, want 1", h.live)
	}
	if err := rt.ReleaseCallback(b); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := b.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("second Release = %v, want ErrReleased", err)
	}
	if b.Code() != 0 {
		t.Error("released binding still has a code address")
	}
	if h.live != 0 {
		t.Errorf("callable refs after release = %d, want 0", h.live)
	}
	st := rt.Stats()
	if st.Allocated != 1 || st.Freed != 1 || st.Live != 0 {
		t.Errorf("stats = %+v, want 1/1/0", st)
	}
}

func TestCallback_ReleasedBindingIsNotAPointer(t *testing.T) {
	rt := New(nil)
	b, err := rt.CallbackFor(func() {}, "cv")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	_ = b.Release()
	if _, err := rt.Marshaller().ToNative(b, mustType('p'), nil); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("error = %v, want ErrTypeMismatch", err)
	}
}

func TestCallback_FaultZeroesReturn(t *testing.T) {
	var handled error
	rt := New(nil, WithFaultHandler(func(_ *Binding, err error) { handled = err }))
	boom := errors.New("boom")
	b, err := rt.CallbackFor(func(x int64) (int64, error) { return 99, boom }, "cii")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer b.Release()

	res, err := rt.Invoke(b.Code(), b.Signature(), []Value{1})
	if err != nil || res != int64(0) {
		t.Errorf("faulting callback returned %v, %v, want 0", res, err)
	}
	fault := b.TakeError()
	if !errors.Is(fault, ErrTrampolineFault) || !errors.Is(fault, boom) {
		t.Errorf("fault = %v, want trampoline fault wrapping boom", fault)
	}
	if b.TakeError() != nil {
		t.Error("TakeError did not clear the fault")
	}
	if !errors.Is(handled, ErrTrampolineFault) {
		t.Errorf("fault handler saw %v", handled)
	}
}

func TestCallback_PanicAndBadResult(t *testing.T) {
	rt := New(nil)
	p, err := rt.CallbackFor(func() float64 { panic("nope") }, "cd")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer p.Release()
	res, err := rt.Invoke(p.Code(), p.Signature(), nil)
	if err != nil || res != 0.0 {
		t.Errorf("panicking callback returned %v, %v", res, err)
	}
	if !errors.Is(p.TakeError(), ErrTrampolineFault) {
		t.Error("panic was not recorded")
	}

	s, err := rt.CallbackFor(func() string { return "seven" }, "ci")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer s.Release()
	res, err = rt.Invoke(s.Code(), s.Signature(), nil)
	if err != nil || res != int64(0) {
		t.Errorf("mistyped callback returned %v, %v", res, err)
	}
	if !errors.Is(s.TakeError(), ErrTypeMismatch) {
		t.Error("mistyped result was not recorded")
	}
}

func TestCallback_BalancedArgumentRefs(t *testing.T) {
	h := newRefHost()
	rt := New(h)
	b, err := rt.CallbackFor(func(a, c int64) (int64, int64) { return c, a }, "cvii")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	if _, err := rt.Invoke(b.Code(), b.Signature(), []Value{1, 2}); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if h.live != 1 {
		t.Errorf("live with binding held = %d, want 1", h.live)
	}
	_ = b.Release()
	if h.live != 0 {
		t.Errorf("live after release = %d, want 0", h.live)
	}
}

func TestCallback_ReleaseInsideTrampoline(t *testing.T) {
	rt := New(nil)
	var b *Binding
	b, err := rt.CallbackFor(func(x int64) int64 {
		if err := b.Release(); err != nil {
			return -1
		}
		return x + 1
	}, "cii")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	code := b.Code()
	res, err := rt.Invoke(code, b.Signature(), []Value{1})
	if err != nil || res != int64(2) {
		t.Errorf("self-releasing callback = %v, %v, want 2", res, err)
	}
	st := rt.Stats()
	if st.Freed != 1 || st.Live != 0 {
		t.Errorf("stats = %+v, want the closure freed after returning", st)
	}
}

func TestCallback_QsortReentrancy(t *testing.T) {
	lib := libc(t)
	rt := New(nil)
	abs := sym(t, lib, "abs")

	// Each comparison calls back into C, so native and host frames interleave.
	cmp, err := rt.CallbackFor(func(a, c Pointer) (int64, error) {
		x := int32(binary.NativeEndian.Uint32(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(a))), 4)))
		y := int32(binary.NativeEndian.Uint32(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(c))), 4)))
		ax, err := rt.Call(abs, "cii", x)
		if err != nil {
			return 0, err
		}
		ay, err := rt.Call(abs, "cii", y)
		if err != nil {
			return 0, err
		}
		return ax.(int64) - ay.(int64), nil
	}, "cipp")
	if err != nil {
		t.Fatalf("CallbackFor failed: %v", err)
	}
	defer cmp.Release()

	in := []int32{5, -1, 3, -9, 0, 2}
	buf, err := AllocBuffer(len(in) * 4)
	if err != nil {
		t.Fatalf("AllocBuffer failed: %v", err)
	}
	defer buf.Free()
	for i, v := range in {
		binary.NativeEndian.PutUint32(buf.Bytes()[i*4:], uint32(v))
	}

	if _, err := rt.Call(sym(t, lib, "qsort"), "cvpLLp", buf, len(in), 4, cmp); err != nil {
		t.Fatalf("qsort failed: %v", err)
	}
	if err := cmp.TakeError(); err != nil {
		t.Fatalf("comparator fault: %v", err)
	}
	want := []int32{0, -1, 2, 3, 5, -9}
	for i, w := range want {
		got := int32(binary.NativeEndian.Uint32(buf.Bytes()[i*4:]))
		if got != w {
			t.Errorf("sorted[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestRuntime_CloseReleasesBindings(t *testing.T) {
	rt := New(nil)
	for i := 0; i < 3; i++ {
		if _, err := rt.CallbackFor(func() {}, "cv"); err != nil {
			t.Fatalf("CallbackFor failed: %v", err)
		}
	}
	if n := len(rt.Bindings()); n != 3 {
		t.Errorf("Bindings = %d, want 3", n)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	st := rt.Stats()
	if st.Live != 0 || st.Freed != 3 {
		t.Errorf("stats after Close = %+v", st)
	}
}
