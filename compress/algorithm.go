// Package compress negotiates and applies per-frame gzip/brotli
// compression, per spec.md §4.2 and §6's one-byte frame discriminator.
package compress

// Algorithm is the wire discriminator byte that precedes a frame's
// codec-encoded body: 0 = none, 1 = gzip, 2 = brotli.
type Algorithm uint8

const (
	None   Algorithm = 0
	Gzip   Algorithm = 1
	Brotli Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	default:
		return "unknown"
	}
}

// Negotiate intersects the client's offered algorithms (in preference
// order) with the server's offered set; the first match wins. An empty
// intersection means uncompressed, per spec.md §4.2.
func Negotiate(clientOffered, serverOffered []Algorithm) Algorithm {
	offered := make(map[Algorithm]bool, len(serverOffered))
	for _, a := range serverOffered {
		offered[a] = true
	}
	for _, a := range clientOffered {
		if offered[a] {
			return a
		}
	}
	return None
}
