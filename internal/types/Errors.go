/*

This file contains the error taxonomy shared by the vault and the strategy.
Operations wrap these with context; callers match them with errors.Is.

*/

package types

import "errors"

var (
	ErrCapacityExceeded        = errors.New("deposit exceeds vault capacity")
	ErrInsufficientShares      = errors.New("insufficient shares")
	ErrDustDeposit             = errors.New("deposit would mint zero shares")
	ErrStrategyNotActive       = errors.New("strategy is not active")
	ErrInsufficientHistory     = errors.New("harvest log is empty")
	ErrInvalidFeeConfig        = errors.New("fee configuration is invalid")
	ErrNotAuthorized           = errors.New("caller is not authorized")
	ErrAlreadyRetired          = errors.New("strategy is already retired")
	ErrReentrantCall           = errors.New("reentrant call")
	ErrInvalidAmount           = errors.New("amount is invalid")
	ErrNoStrategy              = errors.New("no strategy attached")
	ErrStrategyAlreadyAttached = errors.New("strategy already attached")
	ErrStrategyMismatch        = errors.New("strategy does not belong to this vault")
	ErrInvalidTransition       = errors.New("invalid lifecycle transition")
	ErrFeePayment              = errors.New("harvest fee payment failed")
)
