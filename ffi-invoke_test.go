package ctypes

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestInvoke_LibC(t *testing.T) {
	lib := libc(t)
	rt := New(nil)

	res, err := rt.Call(sym(t, lib, "abs"), "cii", -5)
	if err != nil || res != int64(5) {
		t.Errorf("abs(-5) = %v, %v, want 5", res, err)
	}
	res, err = rt.Call(sym(t, lib, "labs"), "cll", int64(-123456))
	if err != nil || res != int64(123456) {
		t.Errorf("labs = %v, %v, want 123456", res, err)
	}
	res, err = rt.Call(sym(t, lib, "strlen"), "cLp", "hello")
	if err != nil || res != uint64(5) {
		t.Errorf("strlen(hello) = %v, %v, want 5", res, err)
	}
	res, err = rt.Call(sym(t, lib, "toupper"), "cii", 'a')
	if err != nil || res != int64('A') {
		t.Errorf("toupper('a') = %v, %v, want 'A'", res, err)
	}
}

func TestInvoke_LibM(t *testing.T) {
	lib, err := OpenLibM()
	if err != nil {
		t.Skipf("no maths library: %v", err)
	}
	defer lib.Close()
	rt := New(nil)

	res, err := rt.Call(sym(t, lib, "fabs"), "cdd", -2.5)
	if err != nil || res != 2.5 {
		t.Errorf("fabs(-2.5) = %v, %v, want 2.5", res, err)
	}
	res, err = rt.Call(sym(t, lib, "pow"), "cddd", 2, 10)
	if err != nil || res != 1024.0 {
		t.Errorf("pow(2, 10) = %v, %v, want 1024", res, err)
	}
}

func TestInvoke_Buffer(t *testing.T) {
	lib := libc(t)
	rt := New(nil)
	b, err := AllocBuffer(16)
	if err != nil {
		t.Fatalf("AllocBuffer failed: %v", err)
	}
	defer b.Free()

	if _, err := rt.Call(sym(t, lib, "memset"), "cppiL", b, 'z', 8); err != nil {
		t.Fatalf("memset failed: %v", err)
	}
	if got := GoString(b.Addr()); got != "zzzzzzzz" {
		t.Errorf("buffer = %q, want 8 z", got)
	}
}

func TestInvoke_StringResult(t *testing.T) {
	lib := libc(t)
	rt := New(nil)
	res, err := rt.Call(sym(t, lib, "strchr"), "cppi", "key=value", '=')
	if err != nil {
		t.Fatalf("strchr failed: %v", err)
	}
	p, ok := res.(Pointer)
	if !ok || p.IsNull() {
		t.Fatalf("strchr = %v, want a pointer", res)
	}
}

func TestInvoke_ArityMismatch(t *testing.T) {
	lib := libc(t)
	rt := New(nil)
	_, err := rt.Call(sym(t, lib, "abs"), "cii")
	var ae *ArityError
	if !errors.As(err, &ae) || ae.Expected != 1 || ae.Actual != 0 {
		t.Errorf("error = %v, want arity 1/0", err)
	}
}

func TestInvoke_BadArgumentIndex(t *testing.T) {
	lib := libc(t)
	rt := New(nil)
	_, err := rt.Call(sym(t, lib, "memset"), "cppiL", Pointer(0), "x", 0)
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TypeError", err)
	}
	if te.Index != 1 || !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("error = %v, want mismatch at argument 1", err)
	}
}

func TestInvoke_BadSignature(t *testing.T) {
	rt := New(nil)
	if _, err := rt.Call(1, "cq"); !errors.Is(err, ErrBadReturnType) {
		t.Errorf("error = %v, want ErrBadReturnType", err)
	}
}

func TestInvoke_KeepsPointerArgumentsAlive(t *testing.T) {
	lib := libc(t)
	h := newRefHost()
	rt := New(h)
	res, err := rt.Call(sym(t, lib, "strlen"), "cLp", []byte("abc\x00"))
	if err != nil {
		t.Fatalf("strlen failed: %v", err)
	}
	h.Release(res)
	if h.live != 0 {
		t.Errorf("live = %d, want 0", h.live)
	}
}

func TestInvoke_DebugLogging(t *testing.T) {
	lib := libc(t)
	var buf bytes.Buffer
	rt := New(nil, WithLogger(NewLogger(&buf, LOG_DEBUG, false)))
	if _, err := rt.Call(sym(t, lib, "abs"), "cii", 1); err != nil {
		t.Fatalf("abs failed: %v", err)
	}
	if !strings.Contains(buf.String(), "invoke") || !strings.Contains(buf.String(), "cii") {
		t.Errorf("log = %q, want an invoke line", buf.String())
	}
}
