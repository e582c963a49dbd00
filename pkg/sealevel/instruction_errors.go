package sealevel

import "errors"

// instruction errors
var (
	InstrErrInvalidArgument                   = errors.New("InstrErrInvalidArgument")
	InstrErrInvalidInstructionData            = errors.New("InstrErrInvalidInstructionData")
	InstrErrInvalidAccountData                = errors.New("InstrErrInvalidAccountData")
	InstrErrAccountDataTooSmall               = errors.New("InstrErrAccountDataTooSmall")
	InstrErrInsufficientFunds                 = errors.New("InstrErrInsufficientFunds")
	InstrErrIncorrectProgramId                = errors.New("InstrErrIncorrectProgramId")
	InstrErrMissingRequiredSignature          = errors.New("InstrErrMissingRequiredSignature")
	InstrErrAccountAlreadyInitialized         = errors.New("InstrErrAccountAlreadyInitialized")
	InstrErrUninitializedAccount              = errors.New("InstrErrUninitializedAccount")
	InstrErrUnbalancedInstruction             = errors.New("InstrErrUnbalancedInstruction")
	InstrErrModifiedProgramId                 = errors.New("InstrErrModifiedProgramId")
	InstrErrExternalAccountLamportSpend       = errors.New("InstrErrExternalAccountLamportSpend")
	InstrErrExternalAccountDataModified       = errors.New("InstrErrExternalAccountDataModified")
	InstrErrReadonlyLamportChange             = errors.New("InstrErrReadonlyLamportChange")
	InstrErrReadonlyDataModified              = errors.New("InstrErrReadonlyDataModified")
	InstrErrExecutableDataModified            = errors.New("InstrErrExecutableDataModified")
	InstrErrExecutableLamportChange           = errors.New("InstrErrExecutableLamportChange")
	InstrErrAccountNotExecutable              = errors.New("InstrErrAccountNotExecutable")
	InstrErrAccountBorrowFailed               = errors.New("InstrErrAccountBorrowFailed")
	InstrErrAccountBorrowOutstanding          = errors.New("InstrErrAccountBorrowOutstanding")
	InstrErrNotEnoughAccountKeys              = errors.New("InstrErrNotEnoughAccountKeys")
	InstrErrAccountDataSizeChanged            = errors.New("InstrErrAccountDataSizeChanged")
	InstrErrMissingAccount                    = errors.New("InstrErrMissingAccount")
	InstrErrReentrancyNotAllowed              = errors.New("InstrErrReentrancyNotAllowed")
	InstrErrUnsupportedProgramId              = errors.New("InstrErrUnsupportedProgramId")
	InstrErrCallDepth                         = errors.New("InstrErrCallDepth")
	InstrErrPrivilegeEscalation               = errors.New("InstrErrPrivilegeEscalation")
	InstrErrComputationalBudgetExceeded       = errors.New("InstrErrComputationalBudgetExceeded")
	InstrErrInvalidSeeds                      = errors.New("InstrErrInvalidSeeds")
	InstrErrInvalidRealloc                    = errors.New("InstrErrInvalidRealloc")
	InstrErrArithmeticOverflow                = errors.New("InstrErrArithmeticOverflow")
	InstrErrMaxInstructionTraceLengthExceeded = errors.New("InstrErrMaxInstructionTraceLengthExceeded")
	InstrErrUnsupportedSysvar                 = errors.New("InstrErrUnsupportedSysvar")
	InstrErrInvalidAccountOwner               = errors.New("InstrErrInvalidAccountOwner")
)

// instruction errors - Solana numerical error codes
const (
	InstrErrCodeSuccess                     = 0
	InstrErrCodeInvalidArgument             = 2
	InstrErrCodeInvalidInstructionData      = 3
	InstrErrCodeInvalidAccountData          = 4
	InstrErrCodeAccountDataTooSmall         = 5
	InstrErrCodeInsufficientFunds           = 6
	InstrErrCodeIncorrectProgramId          = 7
	InstrErrCodeMissingRequiredSignature    = 8
	InstrErrCodeAccountAlreadyInitialized   = 9
	InstrErrCodeUninitializedAccount        = 10
	InstrErrCodeUnbalancedInstruction       = 11
	InstrErrCodeModifiedProgramId           = 12
	InstrErrCodeExternalAccountLamportSpend = 13
	InstrErrCodeExternalAccountDataModified = 14
	InstrErrCodeReadonlyLamportChange       = 15
	InstrErrCodeReadonlyDataModified        = 16
	InstrErrCodeExecutableDataModified      = 28
	InstrErrCodeNotEnoughAccountKeys        = 20
	InstrErrCodeAccountDataSizeChanged      = 21
	InstrErrCodeAccountNotExecutable        = 22
	InstrErrCodeAccountBorrowFailed         = 23
	InstrErrCodeCustom                      = 25
	InstrErrCodeMissingAccount              = 33
	InstrErrCodeComputationalBudgetExceeded = 38
	InstrErrCodePrivilegeEscalation         = 39
	InstrErrCodeCallDepth                   = 42
	InstrErrCodeInvalidSeeds                = 44
	InstrErrCodeInvalidRealloc              = 45
	InstrErrCodeInvalidAccountOwner         = 47
	InstrErrCodeArithmeticOverflow          = 48
)

func translateErrToInstrErrCode(err error) int {
	switch {
	case errors.Is(err, InstrErrInvalidArgument):
		return InstrErrCodeInvalidArgument
	case errors.Is(err, InstrErrInvalidInstructionData):
		return InstrErrCodeInvalidInstructionData
	case errors.Is(err, InstrErrInvalidAccountData):
		return InstrErrCodeInvalidAccountData
	case errors.Is(err, InstrErrAccountDataTooSmall):
		return InstrErrCodeAccountDataTooSmall
	case errors.Is(err, InstrErrInsufficientFunds):
		return InstrErrCodeInsufficientFunds
	case errors.Is(err, InstrErrIncorrectProgramId):
		return InstrErrCodeIncorrectProgramId
	case errors.Is(err, InstrErrMissingRequiredSignature):
		return InstrErrCodeMissingRequiredSignature
	case errors.Is(err, InstrErrAccountAlreadyInitialized):
		return InstrErrCodeAccountAlreadyInitialized
	case errors.Is(err, InstrErrUninitializedAccount):
		return InstrErrCodeUninitializedAccount
	case errors.Is(err, InstrErrUnbalancedInstruction):
		return InstrErrCodeUnbalancedInstruction
	case errors.Is(err, InstrErrModifiedProgramId):
		return InstrErrCodeModifiedProgramId
	case errors.Is(err, InstrErrExternalAccountLamportSpend):
		return InstrErrCodeExternalAccountLamportSpend
	case errors.Is(err, InstrErrExternalAccountDataModified):
		return InstrErrCodeExternalAccountDataModified
	case errors.Is(err, InstrErrReadonlyLamportChange):
		return InstrErrCodeReadonlyLamportChange
	case errors.Is(err, InstrErrReadonlyDataModified):
		return InstrErrCodeReadonlyDataModified
	case errors.Is(err, InstrErrExecutableDataModified):
		return InstrErrCodeExecutableDataModified
	case errors.Is(err, InstrErrNotEnoughAccountKeys):
		return InstrErrCodeNotEnoughAccountKeys
	case errors.Is(err, InstrErrAccountDataSizeChanged):
		return InstrErrCodeAccountDataSizeChanged
	case errors.Is(err, InstrErrAccountNotExecutable):
		return InstrErrCodeAccountNotExecutable
	case errors.Is(err, InstrErrAccountBorrowFailed):
		return InstrErrCodeAccountBorrowFailed
	case errors.Is(err, InstrErrMissingAccount):
		return InstrErrCodeMissingAccount
	case errors.Is(err, InstrErrComputationalBudgetExceeded):
		return InstrErrCodeComputationalBudgetExceeded
	case errors.Is(err, InstrErrPrivilegeEscalation):
		return InstrErrCodePrivilegeEscalation
	case errors.Is(err, InstrErrCallDepth):
		return InstrErrCodeCallDepth
	case errors.Is(err, InstrErrInvalidSeeds):
		return InstrErrCodeInvalidSeeds
	case errors.Is(err, InstrErrInvalidRealloc):
		return InstrErrCodeInvalidRealloc
	case errors.Is(err, InstrErrInvalidAccountOwner):
		return InstrErrCodeInvalidAccountOwner
	case errors.Is(err, InstrErrArithmeticOverflow):
		return InstrErrCodeArithmeticOverflow
	}
	if _, ok := CustomErrorCode(err); ok {
		return InstrErrCodeCustom
	}
	return InstrErrCodeInvalidArgument
}
