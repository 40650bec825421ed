package position

import (
	"context"
	"sync"
)

const feedBuffer = 16

// Feed is a push source: fixes posted by the device are handed to every
// current subscriber.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan Fix]struct{}
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: map[chan Fix]struct{}{}}
}

func (f *Feed) Subscribe(ctx context.Context, _ Options) (<-chan Fix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	ch := make(chan Fix, feedBuffer)
	f.subs[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		f.remove(ch)
	}()
	return ch, nil
}

// Push delivers fix without blocking. A subscriber with a full buffer misses
// it. Push reports whether at least one subscriber received the fix.
func (f *Feed) Push(fix Fix) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := false
	for ch := range f.subs {
		select {
		case ch <- fix:
			delivered = true
		default:
		}
	}
	return delivered
}

// Close ends every subscription and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}

func (f *Feed) remove(ch chan Fix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[ch]; !ok {
		return
	}
	delete(f.subs, ch)
	close(ch)
}
