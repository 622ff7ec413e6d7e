package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
)

func TestCreateRepair(t *testing.T) {
	t.Parallel()

	promised := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)
	repair, err := CreateRepair(CreateRepairInput{
		ClientID:        "client-1",
		ItemDescription: "gold ring, stone loose",
		Issue:           "re-seat the stone",
		EstimatedPrice:  250000,
		PromisedAt:      &promised,
	}, fixedClock(), sequenceIDs("repair"))
	if err != nil {
		t.Fatalf("create repair: %v", err)
	}
	if repair.Status != RepairStatusReceived {
		t.Fatalf("Status = %s, want received", repair.Status)
	}
	if repair.PromisedAt == nil || !repair.PromisedAt.Equal(promised) {
		t.Fatalf("PromisedAt = %v, want %v", repair.PromisedAt, promised)
	}

	if _, err := CreateRepair(CreateRepairInput{ItemDescription: "x"}, nil, nil); !errors.Is(err, ErrRepairClientEmpty) {
		t.Fatalf("expected ErrRepairClientEmpty, got %v", err)
	}
	if _, err := CreateRepair(CreateRepairInput{ClientID: "c1"}, nil, nil); !errors.Is(err, ErrRepairItemEmpty) {
		t.Fatalf("expected ErrRepairItemEmpty, got %v", err)
	}
}

func TestRepairTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from RepairStatus
		to   RepairStatus
		want bool
	}{
		{name: "received to in-progress", from: RepairStatusReceived, to: RepairStatusInProgress, want: true},
		{name: "in-progress to ready", from: RepairStatusInProgress, to: RepairStatusReady, want: true},
		{name: "ready to delivered", from: RepairStatusReady, to: RepairStatusDelivered, want: true},
		{name: "received to cancelled", from: RepairStatusReceived, to: RepairStatusCancelled, want: true},
		{name: "received skips to ready", from: RepairStatusReceived, to: RepairStatusReady, want: false},
		{name: "delivered is final", from: RepairStatusDelivered, to: RepairStatusCancelled, want: false},
		{name: "cancelled is final", from: RepairStatusCancelled, to: RepairStatusInProgress, want: false},
		{name: "no backwards move", from: RepairStatusReady, to: RepairStatusInProgress, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CanTransitionRepair(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransitionRepair(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestTransitionRepairPaymentGate(t *testing.T) {
	t.Parallel()

	now := fixedClock()
	ready := Repair{ID: "r1", Number: "R-000007", Status: RepairStatusReady, FinalPrice: 100000}

	if _, err := TransitionRepair(ready, RepairStatusDelivered, 99999, now()); apperrors.GetCode(err) != apperrors.CodeRepairUnpaid {
		t.Fatalf("expected CodeRepairUnpaid, got %v", err)
	}

	delivered, err := TransitionRepair(ready, RepairStatusDelivered, 100000, now())
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != RepairStatusDelivered {
		t.Fatalf("Status = %s, want delivered", delivered.Status)
	}
	if delivered.DeliveredAt == nil {
		t.Fatal("DeliveredAt not set")
	}

	unpriced := Repair{ID: "r2", Status: RepairStatusReady}
	if _, err := TransitionRepair(unpriced, RepairStatusDelivered, 100000, now()); !errors.Is(err, ErrRepairPriceUnset) {
		t.Fatalf("expected ErrRepairPriceUnset, got %v", err)
	}

	received := Repair{ID: "r3", Status: RepairStatusReceived}
	if _, err := TransitionRepair(received, RepairStatusDelivered, 0, now()); apperrors.GetCode(err) != apperrors.CodeRepairInvalidTransition {
		t.Fatalf("expected CodeRepairInvalidTransition, got %v", err)
	}
}
