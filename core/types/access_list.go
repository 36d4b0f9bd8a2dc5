package types

// AccessList is the EIP-2929/EIP-2930 list of addresses and storage keys a
// transaction declares up front, pre-populated as warm before execution
// begins. Full transaction encoding/signing is a host concern outside this
// package; only the shape the interpreter's access-list warming consumes
// is kept here.
type AccessList []AccessTuple

// AccessTuple is a single address and the storage keys within it that a
// transaction pre-declares as warm.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}
