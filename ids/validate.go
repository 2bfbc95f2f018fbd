package ids

import "errors"

// ValidateIdentity rejects the anonymous identity where a concrete
// principal is required (e.g. reducer call caller fields).
func ValidateIdentity(id Identity) error {
	if id.IsAnonymous() {
		return errors.New("ids: identity must not be anonymous")
	}
	return nil
}

// ValidateConnectionID rejects the zero connection id, which is reserved
// to mean "not yet assigned".
func ValidateConnectionID(c ConnectionID) error {
	if c.IsZero() {
		return errors.New("ids: connection id must not be zero")
	}
	return nil
}
