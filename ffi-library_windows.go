//go:build windows

package ctypes

import (
	"golang.org/x/sys/windows"
)

var libcCandidates = []string{
	"ucrtbase.dll",
	"msvcrt.dll",
}

var libmCandidates = libcCandidates

func openLibrary(name string) (uintptr, error) {
	h, err := windows.LoadLibrary(name)
	return uintptr(h), err
}

func lookupSymbol(h uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(h), name)
}

func closeLibrary(h uintptr) error {
	return windows.FreeLibrary(windows.Handle(h))
}
