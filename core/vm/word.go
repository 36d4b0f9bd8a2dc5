package vm

import (
	"github.com/holiman/uint256"

	"github.com/evmts/xvi-sub002/core/types"
)

// Word is a 256-bit unsigned integer, the native operand type of the
// interpreter. Signed opcodes (SDIV, SMOD, SLT, SGT, SAR, SIGNEXTEND)
// reinterpret the same bits as two's complement; Word carries no separate
// signed representation.
type Word = uint256.Int

// NewWord returns the zero Word.
func NewWord() *Word { return new(uint256.Int) }

// WordFromUint64 returns a Word holding the given unsigned value.
func WordFromUint64(v uint64) *Word { return new(uint256.Int).SetUint64(v) }

// WordFromBytes interprets b as a big-endian integer, left-padding with
// zero if shorter than 32 bytes and truncating to the low 32 bytes if
// longer, matching the "Word is equivalent to the big-endian byte string of
// length 32" invariant.
func WordFromBytes(b []byte) *Word {
	var w uint256.Int
	w.SetBytes(b)
	return &w
}

// WordToAddress truncates a Word to its low 20 bytes, preserving
// big-endian byte order, per the Word-to-Address conversion rule.
func WordToAddress(w *Word) types.Address {
	var b [32]byte
	w.WriteToSlice(b[:])
	return types.BytesToAddress(b[12:])
}

// AddressToWord left-pads a 20-byte address to a 256-bit Word.
func AddressToWord(a types.Address) *Word {
	return WordFromBytes(a[:])
}

// WordToHash reinterprets a Word as a 32-byte storage/log Hash.
func WordToHash(w *Word) types.Hash {
	var b [32]byte
	w.WriteToSlice(b[:])
	return types.Hash(b)
}

// HashToWord reinterprets a storage Hash as a Word.
func HashToWord(h types.Hash) *Word {
	return WordFromBytes(h[:])
}

// wordIsZero reports whether w holds the value 0.
func wordIsZero(w *Word) bool { return w.IsZero() }
