//go:build darwin || freebsd || linux || netbsd

package ctypes

import (
	"github.com/ebitengine/purego"
)

var libcCandidates = []string{
	"libc.so.6", // glibc
	"libc.so",
	"libc.musl-x86_64.so.1",
	"libc.musl-aarch64.so.1",
	"/usr/lib/libSystem.B.dylib",
	"/lib/libc.so.7", // FreeBSD base
}

var libmCandidates = []string{
	"libm.so.6",
	"libm.so",
	"/usr/lib/libSystem.B.dylib",
	"/lib/libm.so.5",
}

func openLibrary(name string) (uintptr, error) {
	return purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func lookupSymbol(h uintptr, name string) (uintptr, error) {
	return purego.Dlsym(h, name)
}

func closeLibrary(h uintptr) error {
	return purego.Dlclose(h)
}
