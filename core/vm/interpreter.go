package vm

import (
	"github.com/evmts/xvi-sub002/core/types"
)

// Run drives the Frame's dispatch loop to completion, leaving the terminal
// state in f.Halt/f.Output. Per-step ordering: opcode lookup, stack depth
// check, generic static-write rejection (skipped for SSTORE/TSTORE, which
// police themselves inside their own handler so they can charge gas
// first), memory-size computation, constant gas, dynamic gas, memory
// expansion charge + grow, execute, then either halt or advance PC
// (skipped for opcodes that manage PC themselves: JUMP/JUMPI/PUSH*).
func (f *Frame) Run() {
	jt := NewJumpTableForFork(f.Env.Fork())

	for !f.halted {
		op := f.GetOp(f.PC)
		opDef := jt[op]
		if opDef == nil || opDef.execute == nil {
			f.setHalt(HaltInvalidOpcode, nil)
			break
		}

		sLen := f.Stack.Len()
		if sLen < opDef.minStack {
			f.setHalt(HaltStackUnderflow, nil)
			break
		}
		if sLen > opDef.maxStack {
			f.setHalt(HaltStackOverflow, nil)
			break
		}

		if opDef.writes && f.IsStatic {
			f.setHalt(HaltStaticCallViolation, nil)
			break
		}

		gasBefore := f.Gas
		var memSize uint64
		if opDef.memorySize != nil {
			sz, overflow := opDef.memorySize(f.Stack)
			if overflow {
				f.setHalt(HaltOutOfGas, nil)
				break
			}
			memSize = sz
		}

		if opDef.constantGas > 0 && !f.UseGas(opDef.constantGas) {
			f.setHalt(HaltOutOfGas, nil)
			break
		}

		if opDef.dynamicGas != nil {
			cost := opDef.dynamicGas(f, memSize)
			if cost == gasOverflow || !f.UseGas(cost) {
				f.setHalt(HaltOutOfGas, nil)
				break
			}
		}

		if memSize > 0 {
			expansion := f.Memory.ExpansionCost(memSize)
			if expansion == gasOverflow || !f.UseGas(expansion) {
				f.setHalt(HaltOutOfGas, nil)
				break
			}
			f.Memory.Grow(memSize)
		}

		if f.Tracer != nil {
			gasCost := gasBefore - f.Gas
			f.Tracer.CaptureState(f.PC, op, f.Gas, gasCost, f.Stack, f.Memory, f.Depth, nil)
		}

		opDef.execute(f)

		if f.halted {
			break
		}
		if !opDef.jumps {
			f.PC++
		}
	}
}

// StateDB is the world-state an EVM reads and mutates: accounts, storage,
// transient storage, and the revert log a Frame's sub-calls need. EVM
// implements the full Environment interface by combining a StateDB with
// block/transaction context, EIP-2929 access tracking, and recursive Frame
// dispatch for CALL/CREATE.
type StateDB interface {
	CreateAccount(addr types.Address)
	GetBalance(addr types.Address) *Word
	AddBalance(addr types.Address, amount *Word)
	SubBalance(addr types.Address, amount *Word)
	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)
	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int

	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key, value types.Hash)
	GetCommittedState(addr types.Address, key types.Hash) types.Hash

	GetTransientState(addr types.Address, key types.Hash) types.Hash
	SetTransientState(addr types.Address, key, value types.Hash)

	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int)

	AddLog(log *types.Log)

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64
}

// EVM is the production Environment: a StateDB plus block/tx context,
// EIP-2929 access-list tracking, and the call-depth counter that bounds
// Call/Create's recursion into fresh Frames.
type EVM struct {
	state   StateDB
	block   BlockContext
	tx      TxContext
	fork    Hardfork
	tracker *AccessListTracker
	depth   int

	// createdThisTx records, for EIP-6780, every address CREATE/CREATE2 has
	// deployed to during this EVM's transaction. One EVM serves exactly one
	// top-level transaction (see NewEVM), so this never needs resetting.
	createdThisTx map[types.Address]bool

	// Tracer, when set, is attached to every Frame this EVM constructs and
	// additionally receives CaptureStart/CaptureEnd around the top-level
	// (depth 0) call or create.
	Tracer EVMLogger
}

// NewEVM returns an EVM ready to execute top-level calls against state, for
// the given block/transaction context and active fork.
func NewEVM(state StateDB, block BlockContext, tx TxContext, fork Hardfork) *EVM {
	return &EVM{
		state:         state,
		block:         block,
		tx:            tx,
		fork:          fork,
		tracker:       NewAccessListTracker(),
		createdThisTx: make(map[types.Address]bool),
	}
}

func (e *EVM) Fork() Hardfork      { return e.fork }
func (e *EVM) Block() BlockContext { return e.block }
func (e *EVM) Tx() TxContext       { return e.tx }

func (e *EVM) GetBalance(addr types.Address) *Word        { return e.state.GetBalance(addr) }
func (e *EVM) GetNonce(addr types.Address) uint64          { return e.state.GetNonce(addr) }
func (e *EVM) GetCode(addr types.Address) []byte           { return e.state.GetCode(addr) }
func (e *EVM) GetCodeHash(addr types.Address) types.Hash    { return e.state.GetCodeHash(addr) }
func (e *EVM) GetCodeSize(addr types.Address) int           { return e.state.GetCodeSize(addr) }
func (e *EVM) AccountExists(addr types.Address) bool        { return e.state.Exist(addr) }
func (e *EVM) AccountEmpty(addr types.Address) bool         { return e.state.Empty(addr) }

// IsPrecompile always reports false: this interpreter has no precompile
// registry, only the bytecode dispatch core.
func (e *EVM) IsPrecompile(addr types.Address) bool { return false }

func (e *EVM) GetStorage(addr types.Address, key types.Hash) types.Hash {
	return e.state.GetState(addr, key)
}
func (e *EVM) SetStorage(addr types.Address, key, value types.Hash) {
	e.state.SetState(addr, key, value)
}
func (e *EVM) GetCommittedStorage(addr types.Address, key types.Hash) types.Hash {
	return e.state.GetCommittedState(addr, key)
}

func (e *EVM) GetTransientStorage(addr types.Address, key types.Hash) types.Hash {
	return e.state.GetTransientState(addr, key)
}
func (e *EVM) SetTransientStorage(addr types.Address, key, value types.Hash) {
	e.state.SetTransientState(addr, key, value)
}

func (e *EVM) AccessAddress(addr types.Address) bool { return e.tracker.TouchAddress(addr) }
func (e *EVM) AccessStorageSlot(addr types.Address, key types.Hash) bool {
	_, slotWarm := e.tracker.TouchSlot(addr, key)
	return slotWarm
}
func (e *EVM) AddressIsWarm(addr types.Address) bool { return e.tracker.ContainsAddress(addr) }
func (e *EVM) SlotIsWarm(addr types.Address, key types.Hash) bool {
	_, slotWarm := e.tracker.ContainsSlot(addr, key)
	return slotWarm
}

func (e *EVM) AddRefund(gas uint64) { e.state.AddRefund(gas) }
func (e *EVM) SubRefund(gas uint64) { e.state.SubRefund(gas) }
func (e *EVM) Refund() uint64       { return e.state.GetRefund() }

func (e *EVM) AddLog(entry *types.Log) { e.state.AddLog(entry) }

func (e *EVM) BlockHash(number uint64) types.Hash {
	if e.block.GetHash == nil {
		return types.Hash{}
	}
	return e.block.GetHash(number)
}

func (e *EVM) HasSelfDestructed(addr types.Address) bool { return e.state.HasSelfDestructed(addr) }

// SelfDestruct moves addr's entire balance to beneficiary. The balance
// transfer always happens; the destruction flag itself is scoped per
// EIP-6780: before Cancun it is set unconditionally, at Cancun+ only if
// addr was created earlier in this same transaction (see createdThisTx).
func (e *EVM) SelfDestruct(addr, beneficiary types.Address) {
	bal := e.state.GetBalance(addr)
	if !bal.IsZero() {
		e.state.SubBalance(addr, bal)
		e.state.AddBalance(beneficiary, bal)
	}
	if !e.fork.IsAtLeast(Cancun) || e.createdThisTx[addr] {
		e.state.SelfDestruct(addr)
	}
}

func (e *EVM) MarkCreatedThisTx(addr types.Address) { e.createdThisTx[addr] = true }

func (e *EVM) WasCreatedThisTx(addr types.Address) bool { return e.createdThisTx[addr] }

// PreWarmAccessList warms sender, recipient, and any EIP-2930 access-list
// entries before the top-level call/create begins, per EIP-2929.
func (e *EVM) PreWarmAccessList(sender types.Address, to *types.Address, accessList types.AccessList) {
	e.tracker.PrePopulate(sender, to, accessList)
}

// Call runs a CALL-family sub-dispatch: it transfers value (if any),
// builds a child Frame against the requested code/storage addresses, runs
// it, and reverts state on any non-successful halt, Revert included. A
// Revert still returns its remaining gas and output to the caller; other
// failures return no gas.
func (e *EVM) Call(req CallRequest) CallOutcome {
	if e.depth >= MaxCallDepth {
		return CallOutcome{GasLeft: req.Gas}
	}

	value := req.Value
	transfers := transfersValue(value)
	if transfers {
		callerBal := e.state.GetBalance(req.Caller)
		if callerBal.Lt(value) {
			return CallOutcome{GasLeft: req.Gas}
		}
	}

	snapshot := e.state.Snapshot()

	if !e.state.Exist(req.StorageAddr) {
		if !transfers && e.fork.IsAtLeast(SpuriousDragon) {
			return CallOutcome{Success: true, GasLeft: req.Gas}
		}
		e.state.CreateAccount(req.StorageAddr)
	}

	if transfers {
		e.state.SubBalance(req.Caller, value)
		e.state.AddBalance(req.StorageAddr, value)
	}

	code := e.state.GetCode(req.CodeAddr)
	if len(code) == 0 {
		return CallOutcome{Success: true, GasLeft: req.Gas}
	}

	frame := NewFrame(req.StorageAddr, req.Caller, value, req.IsStatic, req.Depth, code, req.Input, req.Gas, e)
	frame.CodeHash = e.state.GetCodeHash(req.CodeAddr)
	frame.Tracer = e.Tracer

	if e.Tracer != nil && e.depth == 0 {
		e.Tracer.CaptureStart(req.Caller, req.StorageAddr, false, req.Input, req.Gas, value)
	}

	e.depth++
	frame.Run()
	e.depth--

	if frame.Halt != HaltSuccess {
		e.state.RevertToSnapshot(snapshot)
	}
	// setHalt already zeroed frame.Gas for every non-Success/Revert reason.
	outcome := CallOutcome{Success: frame.Halt == HaltSuccess, GasLeft: frame.Gas, ReturnData: frame.Output}

	if e.Tracer != nil && e.depth == 0 {
		e.Tracer.CaptureEnd(outcome.ReturnData, req.Gas-outcome.GasLeft, nil)
	}

	return outcome
}

// Create runs a CREATE/CREATE2 sub-dispatch: address derivation, the
// collision check, value transfer, init-code execution, and (on success)
// the code-deposit gas charge and final SetCode.
func (e *EVM) Create(req CreateRequest) CreateOutcome {
	if e.depth >= MaxCallDepth {
		return CreateOutcome{GasLeft: req.Gas}
	}
	if len(req.InitCode) > MaxInitCodeSizeForFork(e.fork) {
		return CreateOutcome{GasLeft: req.Gas}
	}

	nonce := e.state.GetNonce(req.Caller)
	e.state.SetNonce(req.Caller, nonce+1)

	var newAddr types.Address
	if req.Kind == CreateKindCreate2 {
		newAddr = Create2Address(req.Caller, req.Salt, req.InitCode)
	} else {
		newAddr = ContractAddress(req.Caller, nonce)
	}

	e.tracker.TouchAddress(newAddr)

	existingHash := e.state.GetCodeHash(newAddr)
	if e.state.GetNonce(newAddr) != 0 || (existingHash != (types.Hash{}) && existingHash != types.EmptyCodeHash) {
		return CreateOutcome{GasLeft: req.Gas}
	}

	snapshot := e.state.Snapshot()

	if !e.state.Exist(newAddr) {
		e.state.CreateAccount(newAddr)
	}
	e.state.SetNonce(newAddr, 1)

	value := req.Value
	if transfersValue(value) {
		callerBal := e.state.GetBalance(req.Caller)
		if callerBal.Lt(value) {
			e.state.RevertToSnapshot(snapshot)
			return CreateOutcome{GasLeft: req.Gas}
		}
		e.state.SubBalance(req.Caller, value)
		e.state.AddBalance(newAddr, value)
	}

	frame := NewFrame(newAddr, req.Caller, value, false, req.Depth, req.InitCode, nil, req.Gas, e)
	frame.Tracer = e.Tracer

	if e.Tracer != nil && e.depth == 0 {
		e.Tracer.CaptureStart(req.Caller, newAddr, true, req.InitCode, req.Gas, value)
	}

	e.depth++
	frame.Run()
	e.depth--

	if frame.Halt != HaltSuccess {
		e.state.RevertToSnapshot(snapshot)
		// setHalt already zeroed frame.Gas for every non-Success/Revert reason.
		if e.Tracer != nil && e.depth == 0 {
			e.Tracer.CaptureEnd(frame.Output, req.Gas-frame.Gas, nil)
		}
		return CreateOutcome{GasLeft: frame.Gas, ReturnData: frame.Output}
	}

	deployed := frame.Output
	if len(deployed) > MaxCodeSizeForFork(e.fork) {
		e.state.RevertToSnapshot(snapshot)
		if e.Tracer != nil && e.depth == 0 {
			e.Tracer.CaptureEnd(nil, req.Gas, nil)
		}
		return CreateOutcome{GasLeft: 0}
	}
	depositCost := CodeDepositCost(deployed)
	if frame.Gas < depositCost {
		e.state.RevertToSnapshot(snapshot)
		if e.Tracer != nil && e.depth == 0 {
			e.Tracer.CaptureEnd(nil, req.Gas, nil)
		}
		return CreateOutcome{GasLeft: 0}
	}
	frame.Gas -= depositCost
	if len(deployed) > 0 {
		e.state.SetCode(newAddr, deployed)
	}
	e.MarkCreatedThisTx(newAddr)

	if e.Tracer != nil && e.depth == 0 {
		e.Tracer.CaptureEnd(deployed, req.Gas-frame.Gas, nil)
	}

	return CreateOutcome{Success: true, NewAddress: newAddr, GasLeft: frame.Gas}
}

// ExecuteMessage runs a top-level transaction's message: a CALL if to is
// non-nil, contract creation otherwise, after pre-warming the EIP-2929
// access list. This is the entry point a transaction processor calls.
func (e *EVM) ExecuteMessage(sender types.Address, to *types.Address, input []byte, gas uint64, value *Word, accessList types.AccessList) (output []byte, gasLeft uint64, contractAddr types.Address, success bool) {
	e.PreWarmAccessList(sender, to, accessList)

	if to == nil {
		outcome := e.Create(CreateRequest{Kind: CreateKindCreate, Caller: sender, InitCode: input, Value: value, Gas: gas})
		return outcome.ReturnData, outcome.GasLeft, outcome.NewAddress, outcome.Success
	}

	outcome := e.Call(CallRequest{Kind: CallKindCall, Caller: sender, CodeAddr: *to, StorageAddr: *to, Value: value, Input: input, Gas: gas})
	return outcome.ReturnData, outcome.GasLeft, types.Address{}, outcome.Success
}
