package ctypes

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Library is an open native shared library.
type Library struct {
	Name   string
	handle uintptr
}

// Symbol resolves name to a native address.
func (l *Library) Symbol(name string) (uintptr, error) {
	if l == nil || l.handle == 0 {
		return 0, fmt.Errorf("symbol %s: library is closed", name)
	}
	addr, err := lookupSymbol(l.handle, name)
	if err != nil {
		return 0, fmt.Errorf("symbol %s in %s: %w", name, l.Name, err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("symbol %s in %s resolved to null", name, l.Name)
	}
	return addr, nil
}

// Close unloads the library. Addresses taken from it become invalid.
func (l *Library) Close() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	h := l.handle
	l.handle = 0
	return closeLibrary(h)
}

// OpenLibrary loads a shared library by path or soname.
func OpenLibrary(name string) (*Library, error) {
	h, err := openLibrary(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load library %s: %w", name, err)
	}
	return &Library{Name: filepath.Base(name), handle: h}, nil
}

// OpenFirst tries each candidate in order and returns the first that loads.
func OpenFirst(candidates ...string) (*Library, error) {
	var errs []error
	for _, c := range candidates {
		lib, err := OpenLibrary(c)
		if err == nil {
			return lib, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no library candidates")
	}
	return nil, fmt.Errorf("none of [%s] could be loaded: %w", strings.Join(candidates, " "), errors.Join(errs...))
}

// OpenLibC loads the platform C library.
func OpenLibC() (*Library, error) {
	return OpenFirst(libcCandidates...)
}

// OpenLibM loads the platform maths library.
func OpenLibM() (*Library, error) {
	return OpenFirst(libmCandidates...)
}
