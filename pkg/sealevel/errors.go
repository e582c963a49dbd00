package sealevel

import (
	"errors"
	"fmt"
)

// transaction errors, raised by the host before or around execution
var (
	TxErrSignatureFailure   = errors.New("TxErrSignatureFailure")
	TxErrBlockhashNotFound  = errors.New("TxErrBlockhashNotFound")
	TxErrAlreadyProcessed   = errors.New("TxErrAlreadyProcessed")
	TxErrAccountLoadedTwice = errors.New("TxErrAccountLoadedTwice")
	TxErrSanitizeFailure    = errors.New("TxErrSanitizeFailure")
)

// TxError is the failure of one instruction, which aborts the whole
// transaction.
type TxError struct {
	InstructionIndex int
	Err              error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %s", e.InstructionIndex, InstructionErrorString(e.Err))
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// CustomErrorCode extracts the program-defined error code carried by err.
func CustomErrorCode(err error) (uint32, bool) {
	if code, ok := TokenErrCode(err); ok {
		return code, true
	}
	if code, ok := StakeFlowErrCode(err); ok {
		return code, true
	}
	if code, ok := SystemProgErrCode(err); ok {
		return code, true
	}
	return 0, false
}

// InstructionErrorString renders err the way validator logs do.
func InstructionErrorString(err error) string {
	if code, ok := CustomErrorCode(err); ok {
		return fmt.Sprintf("custom program error: 0x%x", code)
	}
	return err.Error()
}

// Code is the numeric InstructionError discriminant for the failure.
func (e *TxError) Code() int {
	return translateErrToInstrErrCode(e.Err)
}
