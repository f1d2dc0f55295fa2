/*
balance.go - Balance derivation

PURPOSE:
  Balance is a pure function of transaction history:

    balance = initial_balance
            + sum(amount) where type == income
            - sum(amount) where type == expense
            +/- sum(amount) for transfer legs (in adds, out subtracts)

  Identical input always yields identical output: decimal arithmetic only,
  and the store guarantees a deterministic ordering. As-of queries restrict
  the fold to transactions dated on or before the cutoff.

SEE ALSO:
  - types.go: Transaction.Contribution defines the per-row sign
  - cache.go: Caches the current-balance result
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance folds the full transaction history onto the account's initial
// balance. The input must be the account's complete, ordered history.
func Balance(account Account, txs []Transaction) decimal.Decimal {
	balance := account.InitialBalance
	for _, tx := range txs {
		balance = balance.Add(tx.Contribution())
	}
	return balance
}

// BalanceAsOf folds only transactions dated on or before asOf.
func BalanceAsOf(account Account, txs []Transaction, asOf time.Time) decimal.Decimal {
	balance := account.InitialBalance
	for _, tx := range txs {
		if tx.Date.After(asOf) {
			continue
		}
		balance = balance.Add(tx.Contribution())
	}
	return balance
}

// BalanceSummary breaks a derived balance down by contribution kind.
type BalanceSummary struct {
	Balance      decimal.Decimal
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	NetTransfers decimal.Decimal
	Transactions int
}

// Summarize computes the balance along with per-type totals.
func Summarize(account Account, txs []Transaction) BalanceSummary {
	s := BalanceSummary{
		Balance:      account.InitialBalance,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		NetTransfers: decimal.Zero,
	}
	for _, tx := range txs {
		switch tx.Type {
		case TxIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case TxExpense:
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
		case TxTransfer:
			s.NetTransfers = s.NetTransfers.Add(tx.Contribution())
		}
		s.Balance = s.Balance.Add(tx.Contribution())
		s.Transactions++
	}
	return s
}
