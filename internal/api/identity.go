package api

import "net/http"

// SignerHeader carries the identity asserted by the transport layer.
const SignerHeader = "X-Sibyl-Signer"

// IdentityCheck verifies that the claimed caller identity is the authorizing
// signer of the current request. The engine treats the result as ground truth;
// production deployments back this with real signature verification.
type IdentityCheck interface {
	Verify(r *http.Request, claimed string) bool
}

// HeaderIdentity accepts a request when the transport-asserted signer header
// matches the claimed identity. Suitable behind an authenticating gateway and
// for development.
type HeaderIdentity struct{}

func (HeaderIdentity) Verify(r *http.Request, claimed string) bool {
	return claimed != "" && r.Header.Get(SignerHeader) == claimed
}
