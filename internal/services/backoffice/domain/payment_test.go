package domain

import (
	"errors"
	"testing"
)

func TestCreatePayment(t *testing.T) {
	t.Parallel()

	payment, err := CreatePayment(CreatePaymentInput{
		SaleID:     "sale-1",
		Amount:     150000,
		Method:     PaymentMethodCard,
		RecordedBy: "staff-1",
	}, fixedClock(), sequenceIDs("pay"))
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if payment.PaidAt.IsZero() {
		t.Fatal("PaidAt not defaulted")
	}
	if payment.SaleID != "sale-1" || payment.RepairID != "" {
		t.Fatalf("unexpected target: %+v", payment)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input CreatePaymentInput
		want  error
	}{
		{
			name:  "no target",
			input: CreatePaymentInput{Amount: 100, Method: PaymentMethodCash},
			want:  ErrPaymentTargetMissing,
		},
		{
			name:  "both targets",
			input: CreatePaymentInput{SaleID: "s1", RepairID: "r1", Amount: 100, Method: PaymentMethodCash},
			want:  ErrPaymentTargetMissing,
		},
		{
			name:  "zero amount",
			input: CreatePaymentInput{SaleID: "s1", Amount: 0, Method: PaymentMethodCash},
			want:  ErrPaymentNotPositive,
		},
		{
			name:  "no method",
			input: CreatePaymentInput{SaleID: "s1", Amount: 100},
			want:  ErrPaymentInvalidMethod,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := CreatePayment(tc.input, nil, nil); !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSumPayments(t *testing.T) {
	t.Parallel()

	payments := []Payment{
		{Amount: 100},
		{Amount: 250},
		{Amount: 50},
	}
	if got := SumPayments(payments); got != 400 {
		t.Fatalf("SumPayments = %d, want 400", got)
	}
	if got := SumPayments(nil); got != 0 {
		t.Fatalf("SumPayments(nil) = %d, want 0", got)
	}
}

func TestPaymentMethodRoundTrip(t *testing.T) {
	t.Parallel()

	for _, m := range []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodDeposit} {
		parsed, err := ParsePaymentMethod(m.String())
		if err != nil {
			t.Fatalf("parse %s: %v", m, err)
		}
		if parsed != m {
			t.Fatalf("round trip %s -> %s", m, parsed)
		}
	}
	if _, err := ParsePaymentMethod("barter"); !errors.Is(err, ErrPaymentInvalidMethod) {
		t.Fatalf("expected ErrPaymentInvalidMethod, got %v", err)
	}
}
