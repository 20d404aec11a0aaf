package codestate

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// digestDomain prefixes every snapshot digest for domain separation.
// The version suffix enables future algorithm migration.
const digestDomain = "progsnap2/codestate/v1"

// Snapshot is the exact contents of a code snapshot: file paths mapped to
// raw byte contents. Paths use forward slashes and are relative to the
// snapshot root.
type Snapshot map[string][]byte

// SingleFile builds a snapshot holding one file. Convenience for sources
// whose submissions are a single program text.
func SingleFile(path string, contents []byte) Snapshot {
	return Snapshot{path: contents}
}

// Empty reports whether the snapshot contains no files.
func (s Snapshot) Empty() bool {
	return len(s) == 0
}

// Equal reports whether two snapshots have byte-identical content.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for path, contents := range s {
		oc, ok := other[path]
		if !ok || !bytes.Equal(contents, oc) {
			return false
		}
	}
	return true
}

// Paths returns the snapshot's file paths in canonical (sorted) order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for path := range s {
		paths = append(paths, norm.NFC.String(path))
	}
	sort.Strings(paths)
	return paths
}

// Digest computes the canonical content digest of the snapshot.
//
// Encoding: SHA256(domain + 0x00 + entry*) where each entry is
//
//	NFC(path) + 0x00 + len(contents) as 8-byte big-endian + contents
//
// Paths are NFC-normalized and sorted before encoding, so the digest is
// independent of map iteration order. The null separator and the explicit
// length frame prevent boundary collisions between path and contents
// (e.g. {"a": "bc"} vs {"ab": "c"}).
func (s Snapshot) Digest() string {
	// Normalize first so sorting and encoding agree on the same form.
	normalized := make(map[string][]byte, len(s))
	paths := make([]string, 0, len(s))
	for path, contents := range s {
		np := norm.NFC.String(path)
		normalized[np] = contents
		paths = append(paths, np)
	}
	sort.Strings(paths)

	h := sha256.New()
	h.Write([]byte(digestDomain))
	h.Write([]byte{0x00})

	var frame [8]byte
	for _, path := range paths {
		contents := normalized[path]
		h.Write([]byte(path))
		h.Write([]byte{0x00})
		binary.BigEndian.PutUint64(frame[:], uint64(len(contents)))
		h.Write(frame[:])
		h.Write(contents)
	}

	return hex.EncodeToString(h.Sum(nil))
}
