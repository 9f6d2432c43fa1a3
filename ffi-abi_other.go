//go:build !amd64 || windows

package ctypes

import "github.com/jupiterrider/ffi"

// Platforms with a single C convention treat 's' like 'c'.
var alternateAbi = ffi.DefaultAbi
