package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 11, 1))
	if err != nil || string(b) != `"2025-11-01"` {
		t.Fatalf("marshal: %s err=%v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2025-10-15"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Year() != 2025 || d.Month() != 10 || d.Day() != 15 {
		t.Fatalf("unexpected date %v", d)
	}
	if err := json.Unmarshal([]byte(`"2025-10-15T10:30:00Z"`), &d); err != nil || d.Day() != 15 {
		t.Fatalf("timestamp form: %v err=%v", d, err)
	}
	if err := json.Unmarshal([]byte(`"15/10/2025"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateAt(t *testing.T) {
	loc := time.FixedZone("AST", 3*3600)
	got := NewDate(2025, 3, 9).At(loc)
	want := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("At = %v, want %v", got, want)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestPaymentInputValidate(t *testing.T) {
	good := PaymentInput{
		PatientName:  "Sara",
		PatientPhone: "+967 (1) 234-567",
		Doctor:       "dr-aamer",
		Service:      "cleaning",
		Amount:       Money{Cents: 10000},
		Discount:     Money{Cents: 1000},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		mutate func(*PaymentInput)
		want   error
	}{
		{func(p *PaymentInput) { p.PatientName = " " }, ErrEmptyPatientName},
		{func(p *PaymentInput) { p.PatientPhone = "abc" }, ErrInvalidPhone},
		{func(p *PaymentInput) { p.Doctor = "" }, ErrEmptyDoctor},
		{func(p *PaymentInput) { p.Service = "" }, ErrEmptyService},
		{func(p *PaymentInput) { p.Amount = Money{} }, ErrInvalidAmount},
		{func(p *PaymentInput) { p.Discount = Money{Cents: 20000} }, ErrInvalidDiscount},
		{func(p *PaymentInput) { p.Discount = Money{Cents: -1} }, ErrInvalidDiscount},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			in := good
			tc.mutate(&in)
			err := in.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected a validation error, got %T", err)
			}
		})
	}
}

func TestExpenseInputValidate(t *testing.T) {
	good := ExpenseInput{Category: "rent", Description: "clinic rent", Amount: Money{Cents: 200000}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ExpenseInput{
		{Category: "", Amount: Money{Cents: 1}},
		{Category: "rent", Amount: Money{Cents: 0}},
		{Category: "rent", Amount: Money{Cents: 1}, Description: string(make([]byte, 201))},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestIsValidationWrapped(t *testing.T) {
	err := fmt.Errorf("add payment: %w", ErrEmptyDoctor)
	if !IsValidation(err) {
		t.Fatalf("wrapped validation error not detected")
	}
	if IsValidation(errors.New("disk full")) {
		t.Fatalf("plain error reported as validation")
	}
}

func TestRankAmounts(t *testing.T) {
	got := RankAmounts(map[string]Money{
		"b": {Cents: 100},
		"a": {Cents: 100},
		"c": {Cents: 300},
	})
	want := []string{"c", "a", "b"}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("rank %d = %s, want %s (%v)", i, got[i].Name, name, got)
		}
	}
}
