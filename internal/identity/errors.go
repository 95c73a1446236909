package identity

import "errors"

var (
	// ErrAddressNotFound: the operation referenced an unknown network address.
	ErrAddressNotFound = errors.New("network address not found")
	// ErrFieldNotFound: the target identity has no field of the given kind.
	ErrFieldNotFound = errors.New("identity field not found")
	// ErrDuplicateIdentity: insert attempted on an already registered address.
	// Callers must remove the identity explicitly before re-inserting.
	ErrDuplicateIdentity = errors.New("identity already registered")
)
