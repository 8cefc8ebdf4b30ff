package p115

import "github.com/chenyanggao-clone/p115client/p115err"

// Error kinds re-exported at the package root so callers of the public
// facade don't need a second import for error classification (§7).
const (
	KindRemoteError      = p115err.KindRemoteError
	KindAuthRequired     = p115err.KindAuthRequired
	KindNotFound         = p115err.KindNotFound
	KindAlreadyExists    = p115err.KindAlreadyExists
	KindInvalid          = p115err.KindInvalid
	KindUnsupported      = p115err.KindUnsupported
	KindNoSpace          = p115err.KindNoSpace
	KindBusy             = p115err.KindBusy
	KindTransient        = p115err.KindTransient
	KindCryptoMismatch   = p115err.KindCryptoMismatch
	KindMultipartAborted = p115err.KindMultipartAborted
)

// IsKind reports whether err (or something it wraps) classifies as kind.
func IsKind(err error, kind p115err.Kind) bool { return p115err.IsKind(err, kind) }
