package compression

import (
	"encoding/json"
	"fmt"
)

// A sealed payload starts with a 4-byte tag followed by one algorithm byte
// and the compressed bytes. Serialized JSON can never start with a NUL byte,
// so the two representations cannot collide: a payload either is an envelope
// or it is the plain serialized value.
var envelopeTag = []byte{0x00, 'T', 'C', 'E'}

const envelopeHeaderLen = 5

const (
	codeGzip    byte = 1
	codeDeflate byte = 2
)

func algorithmCode(name string) (byte, bool) {
	switch name {
	case "gzip":
		return codeGzip, true
	case "deflate":
		return codeDeflate, true
	default:
		return 0, false
	}
}

func decompressorFor(code byte) (Compressor, error) {
	switch code {
	case codeGzip:
		return NewGzipCompressor(-1), nil
	case codeDeflate:
		return NewDeflateCompressor(-1), nil
	default:
		return nil, fmt.Errorf("unknown envelope algorithm code: %d", code)
	}
}

// IsSealed reports whether data is a compression envelope.
func IsSealed(data []byte) bool {
	if len(data) < envelopeHeaderLen {
		return false
	}
	for i, b := range envelopeTag {
		if data[i] != b {
			return false
		}
	}
	return true
}

// Seal compresses payload into an envelope when it meets the minSize
// threshold and compression actually shrinks it. On any failure, or when
// compression is not worthwhile, the plain payload is returned with sealed
// false; a Seal error is advisory and never leaves the payload unusable.
func Seal(payload []byte, compressor Compressor, minSize int) (data []byte, sealed bool, err error) {
	if compressor == nil || len(payload) < minSize {
		return payload, false, nil
	}
	code, ok := algorithmCode(compressor.Name())
	if !ok {
		return payload, false, nil
	}

	compressed, err := compressor.Compress(payload)
	if err != nil {
		return payload, false, err
	}
	if len(compressed)+envelopeHeaderLen >= len(payload) {
		return payload, false, nil
	}

	out := make([]byte, 0, envelopeHeaderLen+len(compressed))
	out = append(out, envelopeTag...)
	out = append(out, code)
	out = append(out, compressed...)
	return out, true, nil
}

// Open returns the plain payload for data. A sealed envelope is decompressed
// with the algorithm named in its header; anything else is returned
// unchanged.
func Open(data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return data, nil
	}
	compressor, err := decompressorFor(data[envelopeHeaderLen-1])
	if err != nil {
		return nil, err
	}
	return compressor.Decompress(data[envelopeHeaderLen:])
}

// SerializeAndSeal serializes value to JSON and seals it when worthwhile.
// The returned bool reports whether the result is an envelope.
func SerializeAndSeal(value any, compressor Compressor, minSize int) ([]byte, bool, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, false, fmt.Errorf("failed to serialize value: %w", err)
	}
	return Seal(payload, compressor, minSize)
}

// OpenAndDeserialize opens data (sealed or plain) and unmarshals the payload
// into out.
func OpenAndDeserialize(data []byte, out any) error {
	payload, err := Open(data)
	if err != nil {
		return fmt.Errorf("failed to open payload: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to deserialize value: %w", err)
	}
	return nil
}
