package vm

import (
	"github.com/evmts/xvi-sub002/core/types"
	"github.com/evmts/xvi-sub002/crypto"
)

// ContractAddress derives the address CREATE assigns a new contract:
// keccak256(rlp([sender, nonce]))[12:], per the Yellow Paper.
func ContractAddress(caller types.Address, nonce uint64) types.Address {
	addrEnc := rlpBytes(caller[:])
	nonceEnc := rlpUint(nonce)
	payload := append(addrEnc, nonceEnc...)
	hash := crypto.Keccak256(rlpList(payload))
	return types.BytesToAddress(hash[12:])
}

// Create2Address derives the address CREATE2 assigns a new contract per
// EIP-1014: keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
// salt is the 256-bit value taken directly off the stack.
func Create2Address(caller types.Address, salt *Word, initCode []byte) types.Address {
	var saltBytes [32]byte
	salt.WriteToSlice(saltBytes[:])
	initCodeHash := crypto.Keccak256(initCode)

	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, caller[:]...)
	data = append(data, saltBytes[:]...)
	data = append(data, initCodeHash...)
	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}

// rlpBytes encodes a byte string per the minimal RLP encoding rules needed
// for a 20-byte address: single bytes < 0x80 encode as themselves, anything
// else gets a length-prefixed string header (addresses are always 20 bytes,
// so the long-string >=56-byte form never triggers here).
func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append([]byte{byte(0x80 + len(b))}, b...)
}

// rlpUint encodes a uint64 per RLP's integer rules (minimal big-endian, no
// leading zero byte, 0 encodes as the empty string).
func rlpUint(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	if v < 0x80 {
		return []byte{byte(v)}
	}
	b := minBigEndian(v)
	return append([]byte{byte(0x80 + len(b))}, b...)
}

// rlpList wraps payload in an RLP list header. A nonce-and-address payload
// never reaches 56 bytes, so only the short-list form is needed.
func rlpList(payload []byte) []byte {
	return append([]byte{byte(0xc0 + len(payload))}, payload...)
}

func minBigEndian(v uint64) []byte {
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
		if buf[i] != 0 || n > 0 {
			n = 8 - i
		}
	}
	return buf[8-n:]
}

// CreateUpfrontGas is the gas charged before init code runs: the flat
// 32000 base, plus (CREATE2 only) the keccak256 cost of hashing the init
// code for address derivation, plus EIP-3860's per-word init-code charge
// from Shanghai on (before Shanghai, init code size was unmetered).
func CreateUpfrontGas(fork Hardfork, kind CreateKind, initCodeLen int) uint64 {
	words := toWordSize(uint64(initCodeLen))
	gas := GasCreate
	if kind == CreateKindCreate2 {
		gas += words * GasKeccak256Word
	}
	if fork.IsAtLeast(Shanghai) {
		gas += words * InitCodeWordGas
	}
	return gas
}

// CodeDepositCost is the gas charged to store the bytecode an init-code run
// returned, at GasCreateDataGas per byte.
func CodeDepositCost(code []byte) uint64 {
	return uint64(len(code)) * GasCreateDataGas
}

// MaxCodeSizeForFork returns the maximum deployable contract code size, a
// constant across every fork this interpreter targets (EIP-170, active
// since Spurious Dragon and never since revised in its scope).
func MaxCodeSizeForFork(fork Hardfork) int { return MaxCodeSize }

// MaxInitCodeSizeForFork returns the maximum CREATE/CREATE2 init code size:
// unbounded before EIP-3860 (Shanghai), 2x MaxCodeSize from Shanghai on.
func MaxInitCodeSizeForFork(fork Hardfork) int {
	if fork.IsAtLeast(Shanghai) {
		return MaxInitCodeSize
	}
	return 1<<31 - 1
}
