//go:build debug

// Package debug provides build-tag gated invariant checks. Built with
// the "debug" tag these assertions run for real and panic on violation;
// they are meant for development and CI, never for a production binary.
package debug

import (
	"fmt"
	"sync"
)

func ON() bool { return true }

func Assert(cond bool, args ...any) {
	if !cond {
		panic(fmt.Sprint(append([]any{"assertion failed:"}, args...)...))
	}
}

func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic("assertion failed: unexpected error: " + err.Error())
	}
}

func AssertFunc(f func() bool, args ...any) {
	Assert(f(), args...)
}

// AssertMutexLocked panics if mu is currently unlocked. It works by
// attempting (and immediately releasing) a TryLock: a held mutex refuses
// it, an unlocked one grants it.
func AssertMutexLocked(mu *sync.Mutex) {
	if mu.TryLock() {
		mu.Unlock()
		panic("assertion failed: mutex expected locked, found unlocked")
	}
}

func AssertRWMutexLocked(mu *sync.RWMutex) {
	if mu.TryLock() {
		mu.Unlock()
		panic("assertion failed: rwmutex expected locked, found unlocked")
	}
}
