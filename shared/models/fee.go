package models

import "github.com/shopspring/decimal"

// FeePolicy prices a transfer. Implementations must return a non-negative fee.
type FeePolicy interface {
	Fee(amount decimal.Decimal, payer FeePayer) decimal.Decimal
}

// ZeroFeePolicy charges nothing.
type ZeroFeePolicy struct{}

func (ZeroFeePolicy) Fee(decimal.Decimal, FeePayer) decimal.Decimal { return decimal.Zero }

// DebitAmount is what leaves the source account.
func DebitAmount(amount, fee decimal.Decimal, payer FeePayer) decimal.Decimal {
	if payer == FeePayerSender {
		return amount.Add(fee)
	}
	return amount
}

// CreditAmount is what reaches the destination account.
func CreditAmount(amount, fee decimal.Decimal, payer FeePayer) decimal.Decimal {
	if payer == FeePayerReceiver {
		return amount.Sub(fee)
	}
	return amount
}
