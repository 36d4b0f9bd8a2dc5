package vm

import (
	"github.com/evmts/xvi-sub002/core/types"
	"github.com/evmts/xvi-sub002/crypto"
)

// memAccount is one account's state inside a MemoryEnvironment.
type memAccount struct {
	balance Word
	nonce   uint64
	code    []byte
	codeHash types.Hash
	storage map[types.Hash]types.Hash
}

func newMemAccount() *memAccount {
	return &memAccount{storage: make(map[types.Hash]types.Hash)}
}

// MemoryEnvironment is a self-contained, in-memory Environment implementation
// with no persistence and no real sub-call execution cost model beyond what
// CallFn/CreateFn provide. It exists for unit tests and standalone scripting
// of bytecode against a known account/storage fixture, not for production
// use (a production host wires Environment to its own state trie).
type MemoryEnvironment struct {
	fork  Hardfork
	block BlockContext
	tx    TxContext

	accounts map[types.Address]*memAccount
	original map[types.Address]map[types.Hash]types.Hash
	transient map[types.Address]map[types.Hash]types.Hash

	tracker *AccessListTracker

	refund uint64
	logs   []*types.Log

	destructed map[types.Address]bool
	createdThisTx map[types.Address]bool
	blockHashes map[uint64]types.Hash

	precompiles map[types.Address]bool

	// CallFn and CreateFn, when set, let a test supply the sub-call/sub-create
	// semantics a particular scenario needs; the zero value reports every
	// sub-call and sub-create as a no-op success with no returned data.
	CallFn   func(CallRequest) CallOutcome
	CreateFn func(CreateRequest) CreateOutcome
}

// NewMemoryEnvironment returns an empty MemoryEnvironment for fork, with the
// given block and transaction context.
func NewMemoryEnvironment(fork Hardfork, block BlockContext, tx TxContext) *MemoryEnvironment {
	return &MemoryEnvironment{
		fork:        fork,
		block:       block,
		tx:          tx,
		accounts:    make(map[types.Address]*memAccount),
		original:    make(map[types.Address]map[types.Hash]types.Hash),
		transient:   make(map[types.Address]map[types.Hash]types.Hash),
		tracker:     NewAccessListTracker(),
		destructed:  make(map[types.Address]bool),
		createdThisTx: make(map[types.Address]bool),
		blockHashes: make(map[uint64]types.Hash),
		precompiles: make(map[types.Address]bool),
	}
}

func (e *MemoryEnvironment) account(addr types.Address) *memAccount {
	a, ok := e.accounts[addr]
	if !ok {
		a = newMemAccount()
		e.accounts[addr] = a
	}
	return a
}

// SetBalance, SetNonce, SetCode, and SetStorageDirect seed fixture state
// before running a Frame; they bypass gas accounting and warmth tracking
// entirely, matching the teacher's own prestate-seeding helpers.
func (e *MemoryEnvironment) SetBalance(addr types.Address, v *Word) {
	a := e.account(addr)
	if v != nil {
		a.balance = *v
	}
}

func (e *MemoryEnvironment) SetNonce(addr types.Address, n uint64) { e.account(addr).nonce = n }

func (e *MemoryEnvironment) SetCode(addr types.Address, code []byte) {
	a := e.account(addr)
	a.code = code
	a.codeHash = crypto.Keccak256Hash(code)
}

func (e *MemoryEnvironment) SetStorageDirect(addr types.Address, key, value types.Hash) {
	e.account(addr).storage[key] = value
	if e.original[addr] == nil {
		e.original[addr] = make(map[types.Hash]types.Hash)
	}
	e.original[addr][key] = value
}

func (e *MemoryEnvironment) MarkPrecompile(addr types.Address) { e.precompiles[addr] = true }

func (e *MemoryEnvironment) SetBlockHash(number uint64, h types.Hash) { e.blockHashes[number] = h }

func (e *MemoryEnvironment) Fork() Hardfork        { return e.fork }
func (e *MemoryEnvironment) Block() BlockContext   { return e.block }
func (e *MemoryEnvironment) Tx() TxContext         { return e.tx }

func (e *MemoryEnvironment) GetBalance(addr types.Address) *Word {
	w := e.account(addr).balance
	return &w
}

func (e *MemoryEnvironment) GetNonce(addr types.Address) uint64 { return e.account(addr).nonce }
func (e *MemoryEnvironment) GetCode(addr types.Address) []byte  { return e.account(addr).code }
func (e *MemoryEnvironment) GetCodeHash(addr types.Address) types.Hash {
	return e.account(addr).codeHash
}
func (e *MemoryEnvironment) GetCodeSize(addr types.Address) int { return len(e.account(addr).code) }

func (e *MemoryEnvironment) AccountExists(addr types.Address) bool {
	_, ok := e.accounts[addr]
	return ok
}

func (e *MemoryEnvironment) AccountEmpty(addr types.Address) bool {
	a, ok := e.accounts[addr]
	if !ok {
		return true
	}
	return a.nonce == 0 && a.balance.IsZero() && len(a.code) == 0
}

func (e *MemoryEnvironment) IsPrecompile(addr types.Address) bool { return e.precompiles[addr] }

func (e *MemoryEnvironment) GetStorage(addr types.Address, key types.Hash) types.Hash {
	return e.account(addr).storage[key]
}

func (e *MemoryEnvironment) SetStorage(addr types.Address, key, value types.Hash) {
	e.account(addr).storage[key] = value
}

func (e *MemoryEnvironment) GetCommittedStorage(addr types.Address, key types.Hash) types.Hash {
	if m, ok := e.original[addr]; ok {
		return m[key]
	}
	return types.Hash{}
}

func (e *MemoryEnvironment) GetTransientStorage(addr types.Address, key types.Hash) types.Hash {
	if m, ok := e.transient[addr]; ok {
		return m[key]
	}
	return types.Hash{}
}

func (e *MemoryEnvironment) SetTransientStorage(addr types.Address, key, value types.Hash) {
	if e.transient[addr] == nil {
		e.transient[addr] = make(map[types.Hash]types.Hash)
	}
	e.transient[addr][key] = value
}

func (e *MemoryEnvironment) AccessAddress(addr types.Address) bool {
	return e.tracker.TouchAddress(addr)
}

func (e *MemoryEnvironment) AccessStorageSlot(addr types.Address, key types.Hash) bool {
	_, slotWarm := e.tracker.TouchSlot(addr, key)
	return slotWarm
}

func (e *MemoryEnvironment) AddressIsWarm(addr types.Address) bool {
	return e.tracker.ContainsAddress(addr)
}

func (e *MemoryEnvironment) SlotIsWarm(addr types.Address, key types.Hash) bool {
	_, slotWarm := e.tracker.ContainsSlot(addr, key)
	return slotWarm
}

// PreWarmAccessList warms the sender, recipient, precompiles 0x01-0x13, and
// any EIP-2930 access-list entries before execution begins, per EIP-2929.
func (e *MemoryEnvironment) PreWarmAccessList(sender types.Address, to *types.Address, accessList types.AccessList) {
	e.tracker.PrePopulate(sender, to, accessList)
}

func (e *MemoryEnvironment) AddRefund(gas uint64) { e.refund += gas }

func (e *MemoryEnvironment) SubRefund(gas uint64) {
	if gas > e.refund {
		e.refund = 0
		return
	}
	e.refund -= gas
}

func (e *MemoryEnvironment) Refund() uint64 { return e.refund }

func (e *MemoryEnvironment) AddLog(entry *types.Log) { e.logs = append(e.logs, entry) }

func (e *MemoryEnvironment) Logs() []*types.Log { return e.logs }

func (e *MemoryEnvironment) BlockHash(number uint64) types.Hash { return e.blockHashes[number] }

func (e *MemoryEnvironment) Call(req CallRequest) CallOutcome {
	if e.CallFn != nil {
		return e.CallFn(req)
	}
	return CallOutcome{Success: true, GasLeft: req.Gas}
}

func (e *MemoryEnvironment) Create(req CreateRequest) CreateOutcome {
	if e.CreateFn != nil {
		return e.CreateFn(req)
	}
	return CreateOutcome{Success: true, GasLeft: req.Gas}
}

// SelfDestruct moves addr's entire balance to beneficiary. Before Cancun
// the account is unconditionally flagged for destruction (the pre-EIP-6780
// rule); at Cancun+ (EIP-6780) the destruction flag is only set if addr was
// created earlier in the same transaction, otherwise only the balance
// transfer takes effect.
func (e *MemoryEnvironment) SelfDestruct(addr, beneficiary types.Address) {
	bal := e.account(addr).balance
	b := e.account(beneficiary)
	b.balance.Add(&b.balance, &bal)
	e.account(addr).balance = *NewWord()
	if !e.fork.IsAtLeast(Cancun) || e.createdThisTx[addr] {
		e.destructed[addr] = true
	}
}

func (e *MemoryEnvironment) HasSelfDestructed(addr types.Address) bool { return e.destructed[addr] }

func (e *MemoryEnvironment) MarkCreatedThisTx(addr types.Address) { e.createdThisTx[addr] = true }

func (e *MemoryEnvironment) WasCreatedThisTx(addr types.Address) bool { return e.createdThisTx[addr] }
