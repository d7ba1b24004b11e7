package model

// Identity is the authenticated account reported by the authentication
// collaborator. The zero value means "no identity" (anonymous).
type Identity string

// NoIdentity is the anonymous identity.
const NoIdentity Identity = ""

// Present reports whether the identity is an authenticated account.
func (id Identity) Present() bool {
	return NormalizeKey(string(id)) != ""
}

// String returns the identity as a plain string.
func (id Identity) String() string {
	return string(id)
}
