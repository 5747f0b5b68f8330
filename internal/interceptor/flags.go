package interceptor

import (
	"sync"
	"time"
)

// FlagState is a snapshot of the global UI signals.
type FlagState struct {
	Loading     bool `json:"loading"`
	GlobalError bool `json:"global_error"`
}

// Flags holds the shared loading indicator and the time-boxed global error
// flag. Loading is a plain boolean: any request may clear it.
type Flags struct {
	mu       sync.Mutex
	state    FlagState
	watchers map[int]func(FlagState)
	nextID   int
}

// NewFlags creates cleared flags.
func NewFlags() *Flags {
	return &Flags{watchers: make(map[int]func(FlagState))}
}

// State returns the current flags.
func (f *Flags) State() FlagState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Watch registers fn to be called after every change. The returned function
// removes the watcher.
func (f *Flags) Watch(fn func(FlagState)) (cancel func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watchers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}
}

// SetLoading sets the loading indicator.
func (f *Flags) SetLoading(v bool) {
	f.update(func(s *FlagState) { s.Loading = v })
}

// RaiseError sets the global error flag and clears it after d. Each raise
// schedules its own clear.
func (f *Flags) RaiseError(d time.Duration) {
	f.update(func(s *FlagState) { s.GlobalError = true })
	time.AfterFunc(d, func() {
		f.update(func(s *FlagState) { s.GlobalError = false })
	})
}

func (f *Flags) update(mutate func(*FlagState)) {
	f.mu.Lock()
	before := f.state
	mutate(&f.state)
	after := f.state
	var targets []func(FlagState)
	if after != before {
		targets = make([]func(FlagState), 0, len(f.watchers))
		for _, fn := range f.watchers {
			targets = append(targets, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range targets {
		fn(after)
	}
}
