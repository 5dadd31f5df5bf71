package zipstream

import "golang.org/x/text/encoding"

// An Option customizes a Reader.
type Option func(*Reader)

// WithEncoding sets the fallback character encoding used to decode entry
// names that do not declare UTF-8 in their general-purpose flags. When unset,
// the raw name bytes are passed through unchanged.
func WithEncoding(enc encoding.Encoding) Option {
	return func(z *Reader) {
		z.encoding = enc
	}
}

// WithUnicodeExtraFields controls whether Info-ZIP Unicode Path and Comment
// extra fields may override a name decoded with the fallback encoding. The
// override only applies when the record's stored CRC-32 matches the original
// header bytes.
func WithUnicodeExtraFields(use bool) Option {
	return func(z *Reader) {
		z.unicodeExtras = use
	}
}

// WithStoredDataDescriptors opts in to reading stored entries whose sizes are
// deferred to a data descriptor. Finding the end of such an entry requires
// scanning the payload for the next header signature, which can misfire on
// content that happens to contain one, so it is off by default.
func WithStoredDataDescriptors(allow bool) Option {
	return func(z *Reader) {
		z.storedDescriptors = allow
	}
}
