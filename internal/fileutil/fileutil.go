package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge reports a stream that exceeded its size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Saved describes a file written by SaveStream.
type Saved struct {
	Path   string
	Size   int64
	SHA256 string
}

// SaveStream writes r to dst with mode 0o644, hashing the bytes as they are
// copied. A positive limit caps the accepted size; on overflow or any copy
// failure the partial file is removed.
func SaveStream(dst string, r io.Reader, limit int64) (Saved, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Saved{}, err
	}
	defer func() {
		_ = out.Close()
	}()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), src)
	if err != nil {
		_ = os.Remove(dst)
		return Saved{}, err
	}
	if limit > 0 && written > limit {
		_ = os.Remove(dst)
		return Saved{}, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return Saved{}, err
	}
	return Saved{Path: dst, Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// SafeName reduces a client-supplied file name to its final element so it
// cannot escape the directory it is joined with.
func SafeName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	base := filepath.Base(name)
	switch base {
	case "", ".", "..", "/":
		return "upload"
	}
	return base
}
