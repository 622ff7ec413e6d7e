package domain

import "github.com/atelier-erp/atelier/internal/platform/money"

// ClientBalance aggregates a client's money position across sales,
// repairs, payments, and held deposits.
type ClientBalance struct {
	ClientID     string
	Obligations  money.Amount
	Paid         money.Amount
	HeldDeposits money.Amount
}

// Balance is the net position: payments received plus money held on
// account, minus what the client owes. Negative means the client owes
// the store.
func (b ClientBalance) Balance() money.Amount {
	return b.Paid.Add(b.HeldDeposits).Sub(b.Obligations)
}

// ClientBalanceInputs carries the raw aggregates storage collects to
// build a balance.
type ClientBalanceInputs struct {
	SaleTotals        money.Amount
	DeliveredRepairs  money.Amount
	SalePayments      money.Amount
	RepairPayments    money.Amount
	HeldDepositAmount money.Amount
}

// ComputeClientBalance folds raw aggregates into a balance. Obligations
// count non-cancelled sales plus delivered repairs; payments count money
// received against either document family.
func ComputeClientBalance(clientID string, in ClientBalanceInputs) ClientBalance {
	return ClientBalance{
		ClientID:     clientID,
		Obligations:  in.SaleTotals.Add(in.DeliveredRepairs),
		Paid:         in.SalePayments.Add(in.RepairPayments),
		HeldDeposits: in.HeldDepositAmount,
	}
}
