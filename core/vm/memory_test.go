package vm

import (
	"bytes"
	"testing"
)

func TestMemoryGrow(t *testing.T) {
	mem := NewMemory()
	if mem.Len() != 0 {
		t.Fatalf("initial Len() = %d, want 0", mem.Len())
	}

	mem.Grow(64)
	if mem.Len() != 64 {
		t.Fatalf("after Grow(64), Len() = %d, want 64", mem.Len())
	}

	// Growing to a smaller end must not shrink.
	mem.Grow(32)
	if mem.Len() != 64 {
		t.Fatalf("after Grow(32), Len() = %d, want 64", mem.Len())
	}
}

func TestMemoryGrowRoundsUpToWord(t *testing.T) {
	mem := NewMemory()
	mem.Grow(1)
	if mem.Len() != 32 {
		t.Errorf("Grow(1) = %d, want 32 (rounded to one word)", mem.Len())
	}
}

func TestMemorySetGet(t *testing.T) {
	mem := NewMemory()
	mem.Grow(64)

	data := []byte{0xde, 0xad, 0xbe, 0xef}
	mem.Set(10, data)

	got := mem.Get(10, uint64(len(data)))
	if !bytes.Equal(got, data) {
		t.Errorf("Get() = %x, want %x", got, data)
	}
}

func TestMemorySet32(t *testing.T) {
	mem := NewMemory()
	mem.Grow(32)

	mem.Set32(0, WordFromUint64(0xff))

	got := mem.Get(0, 32)
	expected := make([]byte, 32)
	expected[31] = 0xff
	if !bytes.Equal(got, expected) {
		t.Errorf("Set32 result = %x, want %x", got, expected)
	}
}

func TestMemoryExpansionCostFreeWithinBounds(t *testing.T) {
	mem := NewMemory()
	mem.Grow(64)
	if cost := mem.ExpansionCost(32); cost != 0 {
		t.Errorf("ExpansionCost(32) on a 64-byte memory = %d, want 0", cost)
	}
}

func TestMemoryExpansionCostQuadraticComponent(t *testing.T) {
	mem := NewMemory()
	// From empty, expanding to 32 bytes (1 word) costs exactly the linear term:
	// 3*1 + 1*1/512 = 3.
	if cost := mem.ExpansionCost(32); cost != 3 {
		t.Errorf("ExpansionCost(32) from empty = %d, want 3", cost)
	}
	// At 1024 words the quadratic term contributes: 3*1024 + 1024*1024/512 = 5120.
	if cost := NewMemory().ExpansionCost(32 * 1024); cost != 5120 {
		t.Errorf("ExpansionCost(32768) from empty = %d, want 5120", cost)
	}
}

func TestMemoryGetPtrAliasesStore(t *testing.T) {
	mem := NewMemory()
	mem.Grow(32)
	mem.Set(0, []byte{1, 2, 3})

	ptr := mem.GetPtr(0, 3)
	ptr[0] = 0xff

	got := mem.Get(0, 1)
	if got[0] != 0xff {
		t.Errorf("GetPtr should alias the backing store; Get(0,1) = %x, want ff", got)
	}
}
