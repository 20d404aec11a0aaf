// Package codestate deduplicates code snapshots by content.
//
// A snapshot is a flat set of (path, bytes) pairs. Each distinct snapshot is
// assigned a stable integer identifier: 0 is permanently reserved for the
// empty snapshot, and further ids are assigned in first-observation order
// starting at 1.
//
// Identity is content-addressed: a SHA-256 digest over a canonical byte
// encoding of the snapshot (domain-prefixed, NFC-normalized sorted paths,
// length-framed contents). The digest is seed-free and independent of
// enumeration order, so identical inputs processed in the same relative
// order produce identical ids on every run. General-purpose map hashing is
// deliberately not used anywhere in identity computation because of its
// per-process randomization.
package codestate
