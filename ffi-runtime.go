package ctypes

import (
	"errors"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Runtime ties the core to one host object model. It carries no per-call
// state, so native calls and trampolines may nest through it freely.
type Runtime struct {
	host    Host
	marshal Marshaller
	log     *Logger
	onFault func(*Binding, error)

	live   *xsync.MapOf[uint64, *Binding]
	nextID atomic.Uint64

	allocated atomic.Int64
	freed     atomic.Int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger attaches a logger for debug traces and fault warnings.
func WithLogger(l *Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.log = l
		}
	}
}

// WithFaultHandler is called, on the faulting thread, after a trampoline
// fault has been recorded on its binding.
func WithFaultHandler(fn func(*Binding, error)) Option {
	return func(rt *Runtime) { rt.onFault = fn }
}

// New builds a Runtime over host; a nil host means GoHost.
func New(host Host, opts ...Option) *Runtime {
	if host == nil {
		host = GoHost{}
	}
	rt := &Runtime{
		host:    host,
		marshal: Marshaller{Host: host},
		log:     DiscardLogger(),
		live:    xsync.NewMapOf[uint64, *Binding](),
	}
	for _, o := range opts {
		o(rt)
	}
	return rt
}

func (rt *Runtime) Host() Host { return rt.host }

func (rt *Runtime) Marshaller() Marshaller { return rt.marshal }

// Stats counts native closures over the Runtime's lifetime.
type Stats struct {
	Allocated int64
	Freed     int64
	Live      int
}

func (rt *Runtime) Stats() Stats {
	return Stats{
		Allocated: rt.allocated.Load(),
		Freed:     rt.freed.Load(),
		Live:      rt.live.Size(),
	}
}

// Bindings lists the bindings that have not been released.
func (rt *Runtime) Bindings() []*Binding {
	out := make([]*Binding, 0, rt.live.Size())
	rt.live.Range(func(_ uint64, b *Binding) bool {
		out = append(out, b)
		return true
	})
	return out
}

// Close releases every outstanding binding. Native code must no longer hold
// any of their trampoline addresses.
func (rt *Runtime) Close() error {
	var errs []error
	for _, b := range rt.Bindings() {
		if err := b.Release(); err != nil && !errors.Is(err, ErrReleased) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
