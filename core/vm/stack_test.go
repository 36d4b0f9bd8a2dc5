package vm

import "testing"

func TestStackPushPop(t *testing.T) {
	st := NewStack()
	st.Push(WordFromUint64(42))
	st.Push(WordFromUint64(99))

	if st.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", st.Len())
	}

	v := st.Pop()
	if v.Uint64() != 99 {
		t.Errorf("Pop() = %d, want 99", v.Uint64())
	}
	v = st.Pop()
	if v.Uint64() != 42 {
		t.Errorf("Pop() = %d, want 42", v.Uint64())
	}
	if st.Len() != 0 {
		t.Errorf("Len() = %d, want 0", st.Len())
	}
}

func TestStackPeekBack(t *testing.T) {
	st := NewStack()
	st.Push(WordFromUint64(10))
	st.Push(WordFromUint64(20))
	st.Push(WordFromUint64(30))

	if st.Peek().Uint64() != 30 {
		t.Errorf("Peek() = %d, want 30", st.Peek().Uint64())
	}
	if st.Back(0).Uint64() != 30 {
		t.Errorf("Back(0) = %d, want 30", st.Back(0).Uint64())
	}
	if st.Back(2).Uint64() != 10 {
		t.Errorf("Back(2) = %d, want 10", st.Back(2).Uint64())
	}
}

func TestStackDupIndependentCopy(t *testing.T) {
	st := NewStack()
	st.Push(WordFromUint64(10))
	st.Push(WordFromUint64(20))
	st.Push(WordFromUint64(30))

	st.Dup(2) // duplicates the 2nd from top (20)
	if st.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", st.Len())
	}
	if st.Peek().Uint64() != 20 {
		t.Errorf("after Dup(2), top = %d, want 20", st.Peek().Uint64())
	}

	st.Peek().SetUint64(999)
	if st.Back(2).Uint64() != 20 {
		t.Errorf("Dup should create an independent copy, original mutated to %d", st.Back(2).Uint64())
	}
}

func TestStackSwap(t *testing.T) {
	st := NewStack()
	st.Push(WordFromUint64(1))
	st.Push(WordFromUint64(2))
	st.Push(WordFromUint64(3))

	st.Swap(2) // swaps top (3) with the 2nd below it (1)
	if st.Peek().Uint64() != 1 {
		t.Errorf("after Swap(2), top = %d, want 1", st.Peek().Uint64())
	}
	if st.Back(2).Uint64() != 3 {
		t.Errorf("after Swap(2), bottom = %d, want 3", st.Back(2).Uint64())
	}
}

func TestStackData(t *testing.T) {
	st := NewStack()
	st.Push(WordFromUint64(1))
	st.Push(WordFromUint64(2))

	data := st.Data()
	if len(data) != 2 || data[0].Uint64() != 1 || data[1].Uint64() != 2 {
		t.Errorf("Data() = %v, want [1 2]", data)
	}
}
