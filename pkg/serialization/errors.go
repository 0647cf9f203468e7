package serialization

import "errors"

// Envelope errors
var (
	ErrNotAnEnvelope      = errors.New("data is not a snapshot envelope")
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrMissingKey         = errors.New("envelope is encrypted but no key configured")
	ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")
)
