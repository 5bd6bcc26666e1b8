package api

import "sync/atomic"

// BusyIndicator is notified around every request that is actually sent.
type BusyIndicator interface {
	Begin()
	End()
}

// BusyCounter counts in-flight requests. It never goes below zero.
type BusyCounter struct {
	n atomic.Int64
}

var _ BusyIndicator = (*BusyCounter)(nil)

func (b *BusyCounter) Begin() {
	b.n.Add(1)
}

func (b *BusyCounter) End() {
	for {
		cur := b.n.Load()
		if cur <= 0 {
			return
		}
		if b.n.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Busy reports whether any request is in flight.
func (b *BusyCounter) Busy() bool {
	return b.n.Load() > 0
}

func (b *BusyCounter) Count() int64 {
	return b.n.Load()
}
