package sealevel

// InstructionAcctsFromAccountMetas resolves the account metas of a top-level
// instruction against the transaction accounts. Repeated accounts point
// IndexInCallee at their first occurrence.
func InstructionAcctsFromAccountMetas(instrAcctMetas []AccountMeta, txAccounts TransactionAccounts) []InstructionAccount {
	var instrAccts []InstructionAccount

	for instrAcctIdx, accountMeta := range instrAcctMetas {
		idxInTx := -1
		for pos, acct := range txAccounts.Accounts {
			if acct.Key == accountMeta.Pubkey {
				idxInTx = pos
				break
			}
		}
		if idxInTx == -1 {
			idxInTx = len(txAccounts.Accounts)
		}

		idxInCallee := -1
		for pos, instrAcct := range instrAccts {
			if instrAcct.IndexInTransaction == uint64(idxInTx) {
				idxInCallee = pos
				break
			}
		}
		if idxInCallee == -1 {
			idxInCallee = instrAcctIdx
		}

		newInstrAcct := InstructionAccount{IndexInTransaction: uint64(idxInTx), IndexInCaller: uint64(idxInTx), IndexInCallee: uint64(idxInCallee), IsSigner: accountMeta.IsSigner, IsWritable: accountMeta.IsWritable}
		instrAccts = append(instrAccts, newInstrAcct)
	}

	return instrAccts
}

// ProgramIndex returns the position of programId among the transaction
// accounts.
func ProgramIndex(txAccounts TransactionAccounts, programId [32]byte) ([]uint64, error) {
	for pos, acct := range txAccounts.Accounts {
		if acct.Key == programId {
			return []uint64{uint64(pos)}, nil
		}
	}
	return nil, InstrErrUnsupportedProgramId
}
