package bankerr

import "fmt"

// Status is the wire-level outcome carried back through the request slot.
type Status int32

const (
	StatusOK           Status = 0
	StatusInsufficient Status = 1
	StatusError        Status = 2
)

type BankError struct {
	Code    string
	Message string
	Status  Status
}

func (e *BankError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidAmount     = "INVALID_AMOUNT"
	ErrCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	ErrCodeBankFull          = "BANK_FULL"
)

// Error constructors
func NewValidationError(message string) *BankError {
	return &BankError{
		Code:    ErrCodeValidation,
		Message: message,
		Status:  StatusError,
	}
}

func NewInsufficientFundsError(balance int64) *BankError {
	return &BankError{
		Code:    ErrCodeInsufficientFunds,
		Message: fmt.Sprintf("insufficient funds, balance is %d", balance),
		Status:  StatusInsufficient,
	}
}

func NewInvalidAmountError(message string) *BankError {
	return &BankError{
		Code:    ErrCodeInvalidAmount,
		Message: message,
		Status:  StatusError,
	}
}

func NewAccountNotFoundError(id int32) *BankError {
	return &BankError{
		Code:    ErrCodeAccountNotFound,
		Message: fmt.Sprintf("account %d not found", id),
		Status:  StatusError,
	}
}

func NewBankFullError() *BankError {
	return &BankError{
		Code:    ErrCodeBankFull,
		Message: "no free account slot",
		Status:  StatusError,
	}
}
