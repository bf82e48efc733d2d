package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// digestBlockSize is the read granularity for hashing: 1 MiB, so monthly
// files of any size hash in constant memory.
const digestBlockSize = 1 << 20

// Digest computes the content hash of a file as a hex string. MD5 is enough
// here: the hash detects content changes between runs, nothing more.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, digestBlockSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
