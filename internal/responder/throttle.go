package responder

import (
	"slices"
	"sync"
	"time"
)

// Default throughput limits per channel.
const (
	DefaultMaxPerWindow = 10
	DefaultWindow       = time.Hour
	DefaultMinDelay     = 30 * time.Second
)

// Rejection explains why a send slot was refused. The zero value means the
// slot was granted.
type Rejection string

const (
	RejectNone       Rejection = ""
	RejectWindowFull Rejection = "window_full"
	RejectMinDelay   Rejection = "min_delay"
)

// Throttle caps sends per channel with a sliding window and enforces a
// minimum delay between two sends on the same channel.
type Throttle struct {
	maxPerWindow int
	window       time.Duration
	minDelay     time.Duration

	mu       sync.Mutex
	channels map[string]*channelState
}

type channelState struct {
	sent       []time.Time // ascending
	lastSentAt time.Time
}

// NewThrottle creates a Throttle. Non-positive values take the defaults.
func NewThrottle(maxPerWindow int, window, minDelay time.Duration) *Throttle {
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if minDelay < 0 {
		minDelay = DefaultMinDelay
	}
	return &Throttle{
		maxPerWindow: maxPerWindow,
		window:       window,
		minDelay:     minDelay,
		channels:     make(map[string]*channelState),
	}
}

// Reservation is a granted send slot.
type Reservation struct {
	t        *Throttle
	channel  string
	at       time.Time
	prevLast time.Time
	canceled bool
}

// Acquire checks both limits for channel and, when they allow a send,
// records it at now. The check and the record happen under one lock, so
// concurrent callers can never push a channel past its cap.
func (t *Throttle) Acquire(channel string, now time.Time) (*Reservation, Rejection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.state(channel)
	if rej := t.check(st, now); rej != RejectNone {
		return nil, rej
	}
	res := &Reservation{t: t, channel: channel, at: now, prevLast: st.lastSentAt}
	st.sent = append(st.sent, now)
	st.lastSentAt = now
	return res, RejectNone
}

// Check reports whether a send on channel would be granted at now without
// recording anything.
func (t *Throttle) Check(channel string, now time.Time) Rejection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.check(t.state(channel), now)
}

// Usage returns the sends counted in the current window and the time of
// the last send on channel.
func (t *Throttle) Usage(channel string, now time.Time) (int, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(channel)
	t.prune(st, now)
	return len(st.sent), st.lastSentAt
}

// Cancel releases the slot, for a send that did not go out. Calling it
// more than once is a no-op.
func (r *Reservation) Cancel() {
	if r == nil {
		return
	}
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	if r.canceled {
		return
	}
	r.canceled = true

	st := r.t.state(r.channel)
	if i := slices.Index(st.sent, r.at); i >= 0 {
		st.sent = slices.Delete(st.sent, i, i+1)
	}
	if st.lastSentAt.Equal(r.at) {
		st.lastSentAt = r.prevLast
	}
}

func (t *Throttle) check(st *channelState, now time.Time) Rejection {
	t.prune(st, now)
	if len(st.sent) >= t.maxPerWindow {
		return RejectWindowFull
	}
	if !st.lastSentAt.IsZero() && now.Sub(st.lastSentAt) < t.minDelay {
		return RejectMinDelay
	}
	return RejectNone
}

// prune drops sends that have left the window.
func (t *Throttle) prune(st *channelState, now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(st.sent) && !st.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		st.sent = slices.Delete(st.sent, 0, i)
	}
}

func (t *Throttle) state(channel string) *channelState {
	st, ok := t.channels[channel]
	if !ok {
		st = &channelState{}
		t.channels[channel] = st
	}
	return st
}
