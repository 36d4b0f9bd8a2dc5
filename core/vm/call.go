package vm

import (
	"fmt"

	"github.com/evmts/xvi-sub002/core/types"
)

// CallKind identifies which of the four CALL-family opcodes is executing,
// since CALL/CALLCODE/DELEGATECALL/STATICCALL differ in which address owns
// storage, whether value may move, and what CALLVALUE returns to the
// callee.
type CallKind uint8

const (
	CallKindCall CallKind = iota
	CallKindCallCode
	CallKindDelegateCall
	CallKindStaticCall
)

func (k CallKind) String() string {
	switch k {
	case CallKindCall:
		return "CALL"
	case CallKindCallCode:
		return "CALLCODE"
	case CallKindDelegateCall:
		return "DELEGATECALL"
	case CallKindStaticCall:
		return "STATICCALL"
	default:
		return fmt.Sprintf("CallKind(%d)", k)
	}
}

// CallRequest is what a CALL-family handler hands to the Environment's
// sub-call entry point.
type CallRequest struct {
	Kind       CallKind
	Caller     types.Address
	CodeAddr   types.Address // address whose code runs
	StorageAddr types.Address // address whose storage/balance the call operates on
	Value      *Word
	Input      []byte
	Gas        uint64
	IsStatic   bool
	Depth      int
}

// CallOutcome is what the Environment's sub-call entry point returns.
type CallOutcome struct {
	Success    bool
	GasLeft    uint64
	ReturnData []byte
}

// CreateRequest is what CREATE/CREATE2 hand to the Environment's sub-create
// entry point.
type CreateRequest struct {
	Kind     CreateKind
	Caller   types.Address
	InitCode []byte
	Value    *Word
	Salt     *Word // only meaningful for CREATE2
	Gas      uint64
	Depth    int
}

// CreateOutcome is what the Environment's sub-create entry point returns.
type CreateOutcome struct {
	Success    bool
	NewAddress types.Address
	GasLeft    uint64
	ReturnData []byte // revert reason, if any
}

// CreateKind distinguishes CREATE from CREATE2 address derivation.
type CreateKind uint8

const (
	CreateKindCreate CreateKind = iota
	CreateKindCreate2
)

// ChildGas computes the gas forwarded to a sub-call per EIP-150: the caller
// retains at least 1/64 of its remaining gas, and a requested amount above
// that ceiling is capped to it. Before Tangerine Whistle there is no
// retention; the entire requested (and available) amount may be forwarded.
// If the call carries value, a 2300 stipend is added on top — the stipend
// is never debited from the caller (see CallerCost).
func ChildGas(fork Hardfork, available, requested uint64, transfersValue bool) uint64 {
	maxChild := available
	if fork.IsAtLeast(TangerineWhistle) {
		maxChild = available - available/CallGasFraction
	}
	if requested > maxChild {
		requested = maxChild
	}
	if transfersValue {
		if requested > ^uint64(0)-GasCallStipend {
			requested = ^uint64(0)
		} else {
			requested += GasCallStipend
		}
	}
	return requested
}

// CallerCost is the gas actually debited from the caller for forwarding
// childGas, excluding any stipend portion (the stipend is manufactured,
// not spent).
func CallerCost(childGas uint64, transfersValue bool) uint64 {
	if transfersValue && childGas >= GasCallStipend {
		return childGas - GasCallStipend
	}
	return childGas
}

// EffectiveStorageAddress returns the address whose storage/balance/code a
// call operates on: the target for CALL/STATICCALL, the caller itself for
// CALLCODE/DELEGATECALL (which execute the target's code against the
// caller's own state).
func EffectiveStorageAddress(kind CallKind, caller, target types.Address) types.Address {
	switch kind {
	case CallKindCallCode, CallKindDelegateCall:
		return caller
	default:
		return target
	}
}

// EffectiveCallValue returns the value the callee observes via CALLVALUE:
// the stack value for CALL/CALLCODE, the parent frame's value for
// DELEGATECALL (it never appears on the stack), and always zero for
// STATICCALL.
func EffectiveCallValue(kind CallKind, stackValue, parentValue *Word) *Word {
	switch kind {
	case CallKindDelegateCall:
		if parentValue != nil {
			return parentValue
		}
		return NewWord()
	case CallKindStaticCall:
		return NewWord()
	default:
		if stackValue != nil {
			return stackValue
		}
		return NewWord()
	}
}

// transfersValue reports whether v is a non-nil, non-zero value; EVM.Call
// and EVM.Create use it to decide whether to move a balance.
func transfersValue(v *Word) bool {
	return v != nil && !v.IsZero()
}
