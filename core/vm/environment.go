package vm

import (
	"github.com/evmts/xvi-sub002/core/types"
)

// GetHashFunc resolves a historical block number to its hash, used by
// BLOCKHASH. The interpreter never synthesizes this value itself — it is
// always sourced from the host's own historical window, since no formula
// can recover a real block hash from the opcode's inputs alone.
type GetHashFunc func(blockNumber uint64) types.Hash

// BlockContext carries block-level values an interpreter needs but cannot
// derive from Frame state.
type BlockContext struct {
	GetHash     GetHashFunc
	BlockNumber uint64
	Time        uint64
	Coinbase    types.Address
	GasLimit    uint64
	BaseFee     *Word
	PrevRandao  types.Hash
	BlobBaseFee *Word
	ChainID     uint64
}

// TxContext carries transaction-level values.
type TxContext struct {
	Origin     types.Address
	GasPrice   *Word
	BlobHashes []types.Hash
}

// Environment is the host contract a Frame's dispatch loop calls out to for
// everything that crosses call boundaries: account and storage state,
// transient storage, access-list warmth, the refund counter, logs, and
// sub-call/sub-create dispatch. A single Environment is shared by every
// Frame in one top-level transaction; Frame itself holds nothing that
// outlives its own call.
type Environment interface {
	Fork() Hardfork

	Block() BlockContext
	Tx() TxContext

	GetBalance(addr types.Address) *Word
	GetNonce(addr types.Address) uint64
	GetCode(addr types.Address) []byte
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int
	AccountExists(addr types.Address) bool
	AccountEmpty(addr types.Address) bool
	IsPrecompile(addr types.Address) bool

	GetStorage(addr types.Address, key types.Hash) types.Hash
	SetStorage(addr types.Address, key, value types.Hash)
	GetCommittedStorage(addr types.Address, key types.Hash) types.Hash

	GetTransientStorage(addr types.Address, key types.Hash) types.Hash
	SetTransientStorage(addr types.Address, key, value types.Hash)

	AccessAddress(addr types.Address) (wasWarm bool)
	AccessStorageSlot(addr types.Address, key types.Hash) (wasWarm bool)
	AddressIsWarm(addr types.Address) bool
	SlotIsWarm(addr types.Address, key types.Hash) bool

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	Refund() uint64

	AddLog(entry *types.Log)

	BlockHash(number uint64) types.Hash

	Call(req CallRequest) CallOutcome
	Create(req CreateRequest) CreateOutcome

	SelfDestruct(addr types.Address, beneficiary types.Address)
	HasSelfDestructed(addr types.Address) bool

	// MarkCreatedThisTx records that addr was created by the current
	// top-level transaction, scoped to this Environment's own lifetime (one
	// Environment per transaction). SELFDESTRUCT consults it at Cancun+ to
	// decide whether destruction itself (as opposed to the balance
	// transfer, which always happens) takes effect, per EIP-6780.
	MarkCreatedThisTx(addr types.Address)
	WasCreatedThisTx(addr types.Address) bool
}
