//go:build amd64 && !windows

package ctypes

import "github.com/jupiterrider/ffi"

// alternateAbi is FFI_WIN64 in libffi's x86-64 unix ABI enumeration, used to
// call ms_abi functions from a System V process.
var alternateAbi = ffi.Abi(3)
