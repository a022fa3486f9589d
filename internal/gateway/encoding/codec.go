package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Content-Encoding tokens the gateway understands.
const (
	Identity = "identity"
	Gzip     = "gzip"
	Deflate  = "deflate"
)

// MinEncodeSize is the minimum body size in bytes for re-compression to be
// applied. Tiny bodies grow under gzip framing.
const MinEncodeSize = 1024

// ErrUnsupported is returned when a response carries a Content-Encoding the
// gateway cannot decode. Use errors.Is(err, ErrUnsupported) to check.
// Callers typically pass such responses through unmodified.
var ErrUnsupported = errors.New("unsupported content encoding")

// IsSupported reports whether Decode can handle the given Content-Encoding
// header value.
func IsSupported(contentEncoding string) bool {
	switch normalize(contentEncoding) {
	case "", Identity, Gzip, "x-gzip", Deflate:
		return true
	}
	return false
}

// Decode decompresses an origin response body according to its
// Content-Encoding header. Identity and empty encodings return the body
// unchanged. Deflate accepts both the zlib-wrapped form the RFC mandates
// and the raw form some origin servers emit.
func Decode(body []byte, contentEncoding string) ([]byte, error) {
	switch normalize(contentEncoding) {
	case "", Identity:
		return body, nil

	case Gzip, "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip decode failed: %w", err)
		}
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decode failed: %w", err)
		}
		return decoded, nil

	case Deflate:
		if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			decoded, err := io.ReadAll(r)
			r.Close()
			if err == nil {
				return decoded, nil
			}
		}
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("deflate decode failed: %w", err)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, contentEncoding)
	}
}

// Encode gzips a response body for delivery. Bodies below MinEncodeSize, and
// bodies that do not shrink, are returned unchanged with encoded=false so the
// caller leaves Content-Encoding unset.
func Encode(body []byte) (result []byte, encoded bool, err error) {
	if len(body) < MinEncodeSize {
		return body, false, nil
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, false, fmt.Errorf("gzip encode failed: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, false, fmt.Errorf("gzip encode failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, false, fmt.Errorf("gzip encode close failed: %w", err)
	}

	if buf.Len() >= len(body) {
		return body, false, nil
	}
	return buf.Bytes(), true, nil
}

func normalize(contentEncoding string) string {
	return strings.ToLower(strings.TrimSpace(contentEncoding))
}
