package domain

// FieldKind enumerates the verifiable attribute kinds of an identity. The set
// is closed: adding a kind means touching the challenge builder, the validity
// predicate and the serializer, which is intentional.
type FieldKind string

const (
	FieldLegalName      FieldKind = "legal_name"
	FieldDisplayName    FieldKind = "display_name"
	FieldEmail          FieldKind = "email"
	FieldWeb            FieldKind = "web"
	FieldTwitter        FieldKind = "twitter"
	FieldMatrix         FieldKind = "matrix"
	FieldPGPFingerprint FieldKind = "pgpFingerprint"
	// Image and Additional are accepted in the schema but never produce a
	// challenge and never count toward full verification.
	FieldImage      FieldKind = "image"
	FieldAdditional FieldKind = "additional"
)

// FieldAddress is the claimed value of a field: an email address, a matrix
// handle, a display name. Opaque to the core.
type FieldAddress string

// IdentityField pairs a field kind with its claimed value. It is comparable
// and serves as the key of the manager's reverse index.
type IdentityField struct {
	Kind    FieldKind    `json:"type"`
	Address FieldAddress `json:"address,omitempty"`
}

func NewIdentityField(kind FieldKind, address FieldAddress) IdentityField {
	if kind == FieldImage || kind == FieldAdditional {
		// Placeholders carry no value.
		return IdentityField{Kind: kind}
	}
	return IdentityField{Kind: kind, Address: address}
}

// Placeholder reports whether the field kind is one of the unsupported
// schema-only kinds.
func (f IdentityField) Placeholder() bool {
	return f.Kind == FieldImage || f.Kind == FieldAdditional
}
