package repository

import "github.com/eaglebank/platform/shared/bankerr"

var (
	ErrAccountNotFound     = bankerr.NotFound("account not found")
	ErrTransactionNotFound = bankerr.NotFound("transaction not found")
	ErrBankNotFound        = bankerr.NotFound("bank not found")
	ErrReminderNotFound    = bankerr.NotFound("debt reminder not found")
)
