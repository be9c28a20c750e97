package trend

import "strings"

// Ring is the fixed-capacity sample ring the firmware keeps per metric.
// Slots start as NoSample and are overwritten oldest-first once full.
// Used by the device simulator and by round-trip tests.
type Ring struct {
	buf  []Sample
	next int
}

func NewRing(capacity int) *Ring {
	buf := make([]Sample, capacity)
	for i := range buf {
		buf[i] = NoSample
	}
	return &Ring{buf: buf}
}

func (r *Ring) Add(s Sample) {
	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
	}
}

// Samples returns the ring contents oldest-first.
func (r *Ring) Samples() Series {
	out := make(Series, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

// String renders the ring in wire format: two-hex-digit tokens separated
// by single spaces, oldest first.
func (r *Ring) String() string {
	var b strings.Builder
	b.Grow(len(r.buf) * 3)
	for i, s := range r.Samples() {
		if i > 0 {
			b.WriteByte(' ')
		}
		const hexdigits = "0123456789abcdef"
		b.WriteByte(hexdigits[s>>4])
		b.WriteByte(hexdigits[s&0x0f])
	}
	return b.String()
}
