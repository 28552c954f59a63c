// Package fingerprint computes content digests used to detect file changes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// BlockSize is the read buffer used when streaming file content.
const BlockSize = 8192

// Size is the digest length in bytes.
const Size = sha256.Size

// Digest is a SHA-256 content fingerprint.
type Digest [Size]byte

// String returns the lowercase hex encoding stored in the ledger.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes a hex digest produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("decode digest: %w", err)
	}
	if len(raw) != Size {
		return d, fmt.Errorf("decode digest: expected %d bytes, got %d", Size, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// File streams the file at path in BlockSize blocks and returns its digest.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	d, err := Reader(f)
	if err != nil {
		return Digest{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return d, nil
}

// Reader digests everything readable from r.
func Reader(r io.Reader) (Digest, error) {
	h := sha256.New()
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Bytes digests an in-memory buffer.
func Bytes(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}
