package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{NewInvalidAmount("x"), KindInvalidAmount},
		{NewInvalidField("status", "x"), KindInvalidFieldValue},
		{NewAccountNotFound("1234567890"), KindAccountNotFound},
		{NewAccountClosed("1234567890"), KindAccountClosed},
		{NewInsufficientFunds("1234567890"), KindInsufficientFunds},
		{NewTransactionNotFound("abc"), KindTransactionNotFound},
		{NewBusy("1234567890"), KindBusy},
		{NewTransferFailed(errors.New("boom")), KindTransferFailed},
		{NewInternal(errors.New("boom")), KindInternal},
		{errors.New("plain"), KindUnknown},
		{nil, KindUnknown},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.kind)
		}
	}
}

// 領域錯誤經 fmt %w 包裝後仍可辨識類別
func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("while depositing: %w", NewAccountClosed("1234567890"))
	if KindOf(wrapped) != KindAccountClosed {
		t.Fatalf("kind lost through wrapping: %v", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindAccountClosed) {
		t.Fatal("IsKind should match through wrapping")
	}
}

func TestTransferFailedUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewTransferFailed(cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable via errors.Is")
	}
}

func TestErrorMessageNamesField(t *testing.T) {
	err := NewInvalidField("accountType", "invalid account type: PREMIUM")
	msg := err.Error()
	if msg != "INVALID_FIELD_VALUE [accountType]: invalid account type: PREMIUM" {
		t.Fatalf("unexpected message: %s", msg)
	}
}
