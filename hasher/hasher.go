// Package hasher maps atom identity to content-addressed handles.
//
// Handles are 128-bit blake3 digests rendered as 32 lowercase hex
// characters. Each hash family is domain-separated so a node, a type,
// and a composite can never collide by construction.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"lukechampine.com/blake3"
)

// Handle is the content-addressed identifier of an atom, type or index key.
type Handle string

// Wildcard is the selector sentinel meaning "any value" in pattern keys.
const Wildcard Handle = "*"

// Size is the digest width in bytes.
const Size = 16

// IsWildcard reports whether h is the wildcard sentinel.
func (h Handle) IsWildcard() bool { return h == Wildcard }

func (h Handle) String() string { return string(h) }

// sum hashes parts with a length prefix on each, so no byte placed in a
// type or name can shift a boundary between parts.
func sum(parts ...string) Handle {
	h := blake3.New(Size, nil)
	var buf []byte
	for _, p := range parts {
		buf = binary.AppendUvarint(buf[:0], uint64(len(p)))
		h.Write(buf)
		h.Write([]byte(p))
	}
	return Handle(hex.EncodeToString(h.Sum(nil)))
}

// NamedTypeHash hashes a type name.
func NamedTypeHash(atomType string) Handle {
	return sum("type", atomType)
}

// TerminalHash hashes a node's identity (type, name).
func TerminalHash(atomType, name string) Handle {
	return sum("node", atomType, name)
}

// CompositeHash hashes an ordered list of handles. Wildcards are hashed
// like any other element, which is what pattern keys rely on.
func CompositeHash(handles []Handle) Handle {
	parts := make([]string, 0, len(handles)+1)
	parts = append(parts, "seq")
	for _, h := range handles {
		parts = append(parts, string(h))
	}
	return sum(parts...)
}

// ExpressionHash hashes a link's identity: its type hash followed by the
// target handles in stored order.
func ExpressionHash(typeHash Handle, targets []Handle) Handle {
	seq := make([]Handle, 0, len(targets)+1)
	seq = append(seq, typeHash)
	seq = append(seq, targets...)
	return CompositeHash(seq)
}

// Valid reports whether s looks like a handle produced by this package.
func Valid(s string) bool {
	if len(s) != Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil && strings.ToLower(s) == s
}
