package domain

import (
	"errors"
	"testing"
)

func TestCreateClient(t *testing.T) {
	t.Parallel()

	client, err := CreateClient(CreateClientInput{
		FullName:         "  Anna Petrova  ",
		Phone:            "+7 (912) 345-67-89",
		TelegramUsername: "@annap",
		DiscountPercent:  10,
	}, fixedClock(), sequenceIDs("cli"))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if client.FullName != "Anna Petrova" {
		t.Fatalf("FullName = %q", client.FullName)
	}
	if client.Phone != "+79123456789" {
		t.Fatalf("Phone = %q", client.Phone)
	}
	if client.TelegramUsername != "annap" {
		t.Fatalf("TelegramUsername = %q", client.TelegramUsername)
	}
	if client.CreatedAt != client.UpdatedAt {
		t.Fatal("timestamps should match on create")
	}
}

func TestCreateClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := CreateClient(CreateClientInput{FullName: "   "}, nil, nil); !errors.Is(err, ErrClientNameEmpty) {
		t.Fatalf("expected ErrClientNameEmpty, got %v", err)
	}
	if _, err := CreateClient(CreateClientInput{FullName: "A", DiscountPercent: 51}, nil, nil); !errors.Is(err, ErrClientDiscountRange) {
		t.Fatalf("expected ErrClientDiscountRange, got %v", err)
	}
	if _, err := CreateClient(CreateClientInput{FullName: "A", Phone: "call me"}, nil, nil); !errors.Is(err, ErrClientPhoneInvalid) {
		t.Fatalf("expected ErrClientPhoneInvalid, got %v", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "empty stays empty", raw: "", want: ""},
		{name: "formatting stripped", raw: "+7 (912) 345-67-89", want: "+79123456789"},
		{name: "plain digits", raw: "5551234", want: "5551234"},
		{name: "plus mid-string", raw: "55+1234", wantErr: true},
		{name: "letters rejected", raw: "555-CALL", wantErr: true},
		{name: "too short", raw: "1234", wantErr: true},
		{name: "too long", raw: "1234567890123456", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizePhone(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize %q: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
