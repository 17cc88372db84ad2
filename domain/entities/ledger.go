package entities

// LedgerTransfer is a single transfer instruction inside a ledger transaction
type LedgerTransfer struct {
	Source      string
	Destination string
	Amount      int64
}

// LedgerTransaction is what the external ledger reports for a signature
type LedgerTransaction struct {
	Signature string
	// Err is the on-ledger error, nil if the transaction succeeded
	Err *string
	// Memo is the decoded memo instruction, nil if absent
	Memo      *string
	Transfers []LedgerTransfer
}

// Succeeded checks the transaction landed without an on-ledger error
func (t *LedgerTransaction) Succeeded() bool {
	return t.Err == nil
}

// TransferTo returns the first transfer paying the given destination, or nil
func (t *LedgerTransaction) TransferTo(destination string) *LedgerTransfer {
	for i := range t.Transfers {
		if t.Transfers[i].Destination == destination {
			return &t.Transfers[i]
		}
	}
	return nil
}
