package ids

import "sync/atomic"

// QueryID is a monotonic handle minted client-side that uniquely names an
// active subscription on one connection.
type QueryID uint32

// RequestID is a monotonic handle minted per outbound request that expects
// a response.
type RequestID uint32

// QueryIDAllocator mints increasing QueryId values, wrapping at the u32
// boundary. Safe for concurrent use.
type QueryIDAllocator struct {
	next uint32
}

func (a *QueryIDAllocator) Next() QueryID {
	return QueryID(atomic.AddUint32(&a.next, 1))
}

// RequestIDAllocator mints RequestId values. The request tracker (package
// reqtrack) wraps this to additionally skip ids still pending, per
// spec.md §4.4 and the wrap-before-2^31 requirement in §3.
type RequestIDAllocator struct {
	next uint32
}

// reservedWrap is where allocation wraps back to 1, matching the
// "wraps near 2^31" requirement for RequestId in spec.md §3.
const reservedWrap = uint32(1) << 31

func (a *RequestIDAllocator) Next() RequestID {
	for {
		cur := atomic.LoadUint32(&a.next)
		v := cur + 1
		if v >= reservedWrap {
			// Past the top of the range: this caller gets 1 and the
			// counter is left at 1, so the next caller gets 2.
			v = 1
		}
		if atomic.CompareAndSwapUint32(&a.next, cur, v) {
			return RequestID(v)
		}
	}
}
