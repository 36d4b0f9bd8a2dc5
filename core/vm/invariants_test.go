package vm

import (
	"bytes"
	"testing"

	"github.com/evmts/xvi-sub002/core/types"
	"github.com/evmts/xvi-sub002/crypto"
)

// I1: the stack never exceeds MaxStackDepth (1024); pushing past it halts
// with HaltStackOverflow rather than growing unbounded.
func TestInvariantStackDepthBound(t *testing.T) {
	code := bytes.Repeat([]byte{byte(PUSH1), 0x01}, MaxStackDepth+1)
	f := runFrame(t, Cancun, code, 10_000_000, false)
	if f.Halt != HaltStackOverflow {
		t.Fatalf("halt = %v, want StackOverflow after pushing %d words", f.Halt, MaxStackDepth+1)
	}
}

// I2: a handler either completes in full (stack/memory/storage all updated)
// or not at all; an out-of-gas mid-handler must not leave a partial write
// on the stack. PUSH1 followed by an ADD starved of gas must not leave a
// sum half-computed -- the frame halts with exactly the words pushed before
// the failing opcode still on the stack trace, none from ADD's own effect.
func TestInvariantHandlerAtomicOnOutOfGas(t *testing.T) {
	code := []byte{byte(PUSH1), 0x01, byte(PUSH1), 0x02, byte(ADD)}
	// Budget enough for both PUSH1s (3 gas each) but not the ADD (3 gas).
	f := runFrame(t, Cancun, code, 6, false)
	if f.Halt != HaltOutOfGas {
		t.Fatalf("halt = %v, want OutOfGas", f.Halt)
	}
	if f.Gas != 0 {
		t.Errorf("gas left = %d, want 0 (exceptional halt consumes all remaining gas)", f.Gas)
	}
	if f.Stack.Len() != 2 {
		t.Errorf("stack depth = %d, want 2 (ADD must not pop its operands when its gas charge fails)", f.Stack.Len())
	}
}

// I3: SSTORE and TSTORE are the one documented exception to handler
// atomicity with respect to ordering -- they charge gas before the
// static-context check fires, so a static-context SSTORE still burns gas
// rather than halting for free.
func TestInvariantSstoreChargesBeforeStaticCheck(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(SSTORE),
	}
	f := runFrame(t, Cancun, code, 1_000_000, true)
	if f.Halt != HaltStaticCallViolation {
		t.Fatalf("halt = %v, want StaticCallViolation", f.Halt)
	}
	if f.Gas != 0 {
		t.Errorf("gas left = %d, want 0 (SSTORE burns its gas before the static check halts it)", f.Gas)
	}
	if !f.Env.SlotIsWarm(types.Address{}, types.Hash{}) {
		t.Error("slot not warmed: the static check fired before SSTORE's gas computation ran")
	}
}

// I4: XOR is its own inverse -- x XOR x XOR y == y for any y -- exercising
// the bitwise family's algebraic self-consistency rather than one fixed
// vector.
func TestInvariantXorSelfInverse(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0x99, // x
		byte(PUSH1), 0x99, // x
		byte(XOR),         // x^x = 0
		byte(PUSH1), 0x2a, // y
		byte(XOR),         // y^0 = y
		byte(PUSH1), 0x00, byte(MSTORE),
		byte(PUSH1), 0x20, byte(PUSH1), 0x00, byte(RETURN),
	}
	f := runFrame(t, Cancun, code, 1_000_000, false)
	if f.Halt != HaltSuccess {
		t.Fatalf("halt = %v, want success", f.Halt)
	}
	got := WordFromBytes(f.Output)
	if got.Uint64() != 0x2a {
		t.Errorf("(x^x)^y = %x, want 2a", f.Output)
	}
}

// I5: Keccak-256 (the SHA3 opcode) agrees with the standalone crypto
// package's digest of the same bytes -- the opcode must not diverge from
// the hash function used elsewhere for code hashes and CREATE2 addresses.
func TestInvariantKeccakMatchesCryptoPackage(t *testing.T) {
	code := []byte{
		byte(PUSH1), 0x00, byte(PUSH1), 0x00, byte(KECCAK256),
		byte(PUSH1), 0x00, byte(MSTORE),
		byte(PUSH1), 0x20, byte(PUSH1), 0x00, byte(RETURN),
	}
	f := runFrame(t, Cancun, code, 1_000_000, false)
	if f.Halt != HaltSuccess {
		t.Fatalf("halt = %v, want success", f.Halt)
	}
	want := crypto.Keccak256Hash()
	if !bytes.Equal(f.Output, want[:]) {
		t.Errorf("SHA3() = %x, want %x", f.Output, want)
	}
}

// I6: the refund counter is the sum of independent per-SSTORE deltas, not
// a single final-state comparison -- a clear followed by a second,
// unrelated clear on a different slot must accumulate both refunds.
func TestInvariantRefundAccumulatesAcrossSlots(t *testing.T) {
	env := NewMemoryEnvironment(London, BlockContext{}, TxContext{})
	addr := types.Address{}
	slotA := types.HexToHash("0x01")
	slotB := types.HexToHash("0x02")
	env.SetStorageDirect(addr, slotA, types.HexToHash("0x05"))
	env.SetStorageDirect(addr, slotB, types.HexToHash("0x07"))

	_, deltaA := SstoreCost(env, London, addr, slotA, types.Hash{})
	ApplySstore(env, addr, slotA, types.Hash{}, deltaA)

	_, deltaB := SstoreCost(env, London, addr, slotB, types.Hash{})
	ApplySstore(env, addr, slotB, types.Hash{}, deltaB)

	want := 2 * SstoreClearsRefundEIP3529
	if env.Refund() != want {
		t.Errorf("refund after clearing two independent slots = %d, want %d", env.Refund(), want)
	}
}

// I7: a CALL-family opcode forwards at most 63/64 of the gas remaining
// after its own constant/dynamic charge, per EIP-150 (Tangerine Whistle
// and later).
func TestInvariantChildGasRetentionBound(t *testing.T) {
	available := uint64(6400)
	child := ChildGas(Cancun, available, available, false)
	maxAllowed := available - available/CallGasFraction
	if child > maxAllowed {
		t.Errorf("ChildGas forwarded %d, want at most %d (63/64 of %d)", child, maxAllowed, available)
	}
	if child != maxAllowed {
		t.Errorf("ChildGas forwarded %d when the full amount was requested, want exactly %d", child, maxAllowed)
	}
}
