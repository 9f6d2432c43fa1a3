package ctypes

import (
	"strings"

	"github.com/jupiterrider/ffi"
)

// CallKind is the calling convention tag in position 0 of a signature.
type CallKind byte

const (
	// CallDefault selects the platform's default C convention.
	CallDefault CallKind = 'c'
	// CallAlternate selects the platform's second convention, where one exists.
	CallAlternate CallKind = 's'
)

func (k CallKind) valid() bool {
	return k == CallDefault || k == CallAlternate
}

func (k CallKind) abi() ffi.Abi {
	if k == CallAlternate {
		return alternateAbi
	}
	return ffi.DefaultAbi
}

// Signature is a parsed type-code string: call kind, return type, then
// parameter types in call order. It is immutable and safe to share.
type Signature struct {
	Kind   CallKind
	Return *TypeDescriptor
	Params []*TypeDescriptor

	text string
}

// ValidateSignature checks sig and returns its parameter count.
func ValidateSignature(sig string) (int, error) {
	if len(sig) < 2 {
		return 0, &SignatureError{Signature: sig, Kind: ErrTooShort}
	}
	if !CallKind(sig[0]).valid() {
		return 0, &SignatureError{Signature: sig, Kind: ErrBadCallKind, Char: sig[0]}
	}
	if strings.IndexByte(ReturnCodes, sig[1]) < 0 {
		return 0, &SignatureError{Signature: sig, Kind: ErrBadReturnType, Char: sig[1]}
	}
	for i := 2; i < len(sig); i++ {
		if strings.IndexByte(ParamCodes, sig[i]) < 0 {
			return 0, &SignatureError{Signature: sig, Kind: ErrBadParameterType, Index: i - 1, Char: sig[i]}
		}
	}
	return len(sig) - 2, nil
}

// ParseSignature validates sig and resolves every code through the type table.
func ParseSignature(sig string) (Signature, error) {
	n, err := ValidateSignature(sig)
	if err != nil {
		return Signature{}, err
	}
	s := Signature{
		Kind:   CallKind(sig[0]),
		Return: mustType(sig[1]),
		Params: make([]*TypeDescriptor, n),
		text:   sig,
	}
	for i := 0; i < n; i++ {
		s.Params[i] = mustType(sig[i+2])
	}
	return s, nil
}

// MustParseSignature is ParseSignature for literals known to be valid.
func MustParseSignature(sig string) Signature {
	s, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return s
}

// NumParams is the parameter count.
func (s Signature) NumParams() int {
	return len(s.Params)
}

// NumResults is 0 for a void return, otherwise 1.
func (s Signature) NumResults() int {
	if s.Return == nil || s.Return.IsVoid() {
		return 0
	}
	return 1
}

func (s Signature) String() string {
	return s.text
}

// ffiParams builds a fresh libffi argument type vector. Callers own the
// slice because libffi keeps a pointer to it inside the prepared cif.
func (s Signature) ffiParams() []*ffi.Type {
	if len(s.Params) == 0 {
		return nil
	}
	out := make([]*ffi.Type, len(s.Params))
	for i, p := range s.Params {
		out[i] = p.ffi
	}
	return out
}

// prepCif prepares cif for s. argTypes must stay reachable and unmoved for
// as long as cif is used.
func (s Signature) prepCif(cif *ffi.Cif, argTypes []*ffi.Type) error {
	if st := ffi.PrepCif(cif, s.Kind.abi(), uint32(len(argTypes)), s.Return.ffi, argTypes...); st != ffi.OK {
		return &FFIError{Op: "ffi_prep_cif(" + s.text + ")", Status: st}
	}
	return nil
}
