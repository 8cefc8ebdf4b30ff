package envelope

import "errors"

// ErrCryptoMismatch is returned when a wire payload fails to decode under
// either envelope. Per spec this is non-retryable: the caller should
// treat it as a signal of transport corruption, not a transient failure.
var ErrCryptoMismatch = errors.New("envelope: response failed to decode")
