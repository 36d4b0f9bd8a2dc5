package vm

import (
	"github.com/evmts/xvi-sub002/core/types"
)

// SloadCost returns the gas cost of an SLOAD, warming the slot as a side
// effect per EIP-2929. Pre-Berlin forks have no warm/cold distinction; the
// fork-appropriate flat cost from gas.go applies uniformly.
func SloadCost(env Environment, fork Hardfork, addr types.Address, slot types.Hash) uint64 {
	if !fork.IsAtLeast(Berlin) {
		return GasSload(fork, false)
	}
	wasWarm := env.AccessStorageSlot(addr, slot)
	return GasSload(fork, !wasWarm)
}

// SstoreCost computes the EIP-2200/EIP-3529 net-metering gas cost and
// refund delta for writing newVal into (addr, slot), warming the slot as a
// side effect. The three refund cases below are independent, matching the
// Yellow Paper's case analysis rather than a single if/else chain: a write
// can simultaneously undo an old clear-refund AND grant a restore-refund in
// the same call (e.g. original=5, current=0, new=5 takes back the clear
// refund granted when the slot was emptied and also grants the
// reset-minus-warm-read restore refund).
func SstoreCost(env Environment, fork Hardfork, addr types.Address, slot types.Hash, newVal types.Hash) (gas uint64, refundDelta int64) {
	wasWarm := env.AccessStorageSlot(addr, slot)
	var coldCost uint64
	if fork.IsAtLeast(Berlin) && !wasWarm {
		coldCost = ColdSloadCost
	}

	current := env.GetStorage(addr, slot)
	original := env.GetCommittedStorage(addr, slot)

	if !fork.IsAtLeast(Istanbul) {
		// Pre-Istanbul: flat SSTORE pricing, no net-metering, no refund cases.
		if current == (types.Hash{}) && newVal != (types.Hash{}) {
			return SstoreSetGasEIP2200 + coldCost, 0
		}
		if current != (types.Hash{}) && newVal == (types.Hash{}) {
			return SstoreResetGasEIP2200 + coldCost, int64(sstoreClearsRefund(fork))
		}
		return SstoreResetGasEIP2200 + coldCost, 0
	}

	if current == newVal {
		return WarmStorageReadCost + coldCost, 0
	}

	clearsRefund := int64(sstoreClearsRefund(fork))

	if original == current {
		if original == (types.Hash{}) {
			return SstoreSetGasEIP2200 + coldCost, 0
		}
		if newVal == (types.Hash{}) {
			return SstoreResetGasEIP2200 + coldCost, clearsRefund
		}
		return SstoreResetGasEIP2200 + coldCost, 0
	}

	// Dirty slot: this tx already wrote here once. Base cost is a warm read;
	// everything else is refund bookkeeping against the three independent
	// cases below.
	gas = WarmStorageReadCost + coldCost

	if original != (types.Hash{}) {
		if current == (types.Hash{}) {
			// Case: this write un-clears a slot this tx had previously
			// cleared (current==0 means some earlier op in this tx set it
			// to 0 and earned clearsRefund; writing non-original-zero here
			// takes that refund back).
			refundDelta -= clearsRefund
		} else if newVal == (types.Hash{}) {
			// Case: this write newly clears a non-zero slot.
			refundDelta += clearsRefund
		}
	}

	if newVal == original {
		// Case: this write restores the slot to its transaction-start value,
		// refunding the gas difference between what a fresh set/reset would
		// have cost and what the warm read this call is charged costs.
		if original == (types.Hash{}) {
			refundDelta += int64(SstoreSetGasEIP2200 - WarmStorageReadCost)
		} else {
			refundDelta += int64(SstoreResetGasEIP2200 - WarmStorageReadCost)
		}
	}

	return gas, refundDelta
}

// ApplySstore writes newVal and applies refundDelta to the refund counter.
// Called only after gas has been charged and any static-context check has
// passed.
func ApplySstore(env Environment, addr types.Address, slot types.Hash, newVal types.Hash, refundDelta int64) {
	if refundDelta > 0 {
		env.AddRefund(uint64(refundDelta))
	} else if refundDelta < 0 {
		env.SubRefund(uint64(-refundDelta))
	}
	env.SetStorage(addr, slot, newVal)
}
