package compressor

import (
	"crypto/md5"
	"crypto/sha256"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compression selects the algorithm used to reduce a user key to the byte
// image that gets bit-encoded into the ZDD.
type Compression int

const (
	// Identity passes the input through unchanged.
	Identity Compression = iota
	// MD5 reduces the input to its 16-byte MD5 digest.
	MD5
	// SHA256 reduces the input to its 32-byte SHA-256 digest.
	SHA256
	// Zstd compresses the input with zstd at a fixed encoder level. The
	// result is treated as opaque by callers; there is no decompression
	// path in this package because Storage never needs the original
	// bytes back.
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Identity:
		return "identity"
	case MD5:
		return "md5"
	case SHA256:
		return "sha256"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

var zstdEncoders = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			// Only fails on invalid options; the options above are
			// static and known-good.
			panic(err)
		}
		return enc
	},
}

// Compress reduces in according to c. The returned slice is always freshly
// allocated and safe for the caller to retain.
func (c Compression) Compress(in []byte) []byte {
	switch c {
	case Identity:
		out := make([]byte, len(in))
		copy(out, in)
		return out
	case MD5:
		sum := md5.Sum(in)
		return sum[:]
	case SHA256:
		sum := sha256.Sum256(in)
		return sum[:]
	case Zstd:
		enc := zstdEncoders.Get().(*zstd.Encoder)
		defer zstdEncoders.Put(enc)
		enc.Reset(nil)
		return enc.EncodeAll(in, make([]byte, 0, c.CompressedLen(len(in))))
	default:
		panic("compressor: unknown variant")
	}
}

// CompressedLen returns the exact or upper-bound output length Compress
// will produce for an input of inputLen bytes. Fixed-width variants return
// an exact length; zstd returns inputLen plus a fixed 64-byte allowance for
// frame overhead, which is not queried from the codec.
func (c Compression) CompressedLen(inputLen int) int {
	switch c {
	case Identity:
		return inputLen
	case MD5:
		return md5.Size
	case SHA256:
		return sha256.Size
	case Zstd:
		// zstd's frame overhead is small and bounded; inputLen+64 is a
		// comfortably safe upper bound for the default speed setting
		// used here, avoiding a dependency on an unexported codec
		// constant.
		return inputLen + 64
	default:
		panic("compressor: unknown variant")
	}
}
