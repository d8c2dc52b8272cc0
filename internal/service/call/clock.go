package call

import (
	"math/rand/v2"
	"time"
)

// Timer is the subset of *time.Timer the session relies on.
type Timer interface {
	Stop() bool
}

// Clock 抽象时间来源，测试中可替换为手动推进的实现。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// UniformDelay returns a function yielding durations in [lo, hi).
func UniformDelay(lo, hi time.Duration) func() time.Duration {
	if hi <= lo {
		return func() time.Duration { return lo }
	}
	return func() time.Duration {
		return lo + rand.N(hi-lo)
	}
}
