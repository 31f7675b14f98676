package hashing

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Encoding selects the text rendering of a digest.
type Encoding int

const (
	HexUpper Encoding = iota
	HexLower
	Base64
)

// ParseEncoding accepts "hex" or "upper" (uppercase hex), "lower" and "base64".
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hex", "upper", "hex-upper":
		return HexUpper, nil
	case "lower", "hex-lower":
		return HexLower, nil
	case "base64", "b64":
		return Base64, nil
	default:
		return 0, fmt.Errorf("unknown digest encoding %q", name)
	}
}

func (e Encoding) String() string {
	switch e {
	case HexUpper:
		return "hex"
	case HexLower:
		return "lower"
	case Base64:
		return "base64"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Encode renders sum in encoding e. Unknown encodings fall back to uppercase hex.
func (e Encoding) Encode(sum []byte) string {
	switch e {
	case HexLower:
		return hex.EncodeToString(sum)
	case Base64:
		return base64.StdEncoding.EncodeToString(sum)
	default:
		return strings.ToUpper(hex.EncodeToString(sum))
	}
}

// Digest is the complete result of hashing one input.
type Digest struct {
	Algorithm Algorithm
	Sum       []byte
	// Size is the number of bytes fed to the accumulator.
	Size   int64
	Chunks int
}

// Encode renders the digest bytes.
func (d Digest) Encode(enc Encoding) string {
	return enc.Encode(d.Sum)
}
