//go:build !debug

// Package debug provides build-tag gated invariant checks. Built without
// the "debug" tag (the default, and the only mode used in production
// builds) every function here compiles to a no-op so the checks cost
// nothing at runtime.
package debug

import "sync"

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func AssertFunc(_ func() bool, _ ...any) {}

func AssertMutexLocked(_ *sync.Mutex)     {}
func AssertRWMutexLocked(_ *sync.RWMutex) {}
