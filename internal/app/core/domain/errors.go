package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 錯誤類別：穩定的機器可讀代碼
// 呼叫端以此區分「請求本身有問題」與「系統不健康」
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	// KindInvalidAmount 金額不合法（需要正數卻非正、精度錯誤、格式錯誤）
	KindInvalidAmount
	// KindInvalidFieldValue 欄位值不在允許的列舉內，Field 標明是哪個欄位
	KindInvalidFieldValue
	// KindAccountNotFound 找不到帳戶
	KindAccountNotFound
	// KindAccountClosed 帳戶非 ACTIVE，不接受異動
	KindAccountClosed
	// KindInsufficientFunds 餘額不足
	KindInsufficientFunds
	// KindTransactionNotFound 找不到交易紀錄
	KindTransactionNotFound
	// KindBusy 鎖競爭逾時，可重試
	KindBusy
	// KindTransferFailed 轉帳無法保證原子性，餘額未變動
	KindTransferFailed
	// KindInternal 非預期的內部錯誤，與上述業務錯誤明確區隔
	KindInternal
)

// String 回傳類別代碼字串
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidAmount:
		return "INVALID_AMOUNT"
	case KindInvalidFieldValue:
		return "INVALID_FIELD_VALUE"
	case KindAccountNotFound:
		return "ACCOUNT_NOT_FOUND"
	case KindAccountClosed:
		return "ACCOUNT_CLOSED"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case KindTransactionNotFound:
		return "TRANSACTION_NOT_FOUND"
	case KindBusy:
		return "BUSY"
	case KindTransferFailed:
		return "TRANSFER_FAILED"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error 領域錯誤：類別 + 人可讀訊息 + 出錯的欄位或帳戶
// 訊息描述業務事實，不暴露儲存層細節
type Error struct {
	Kind    ErrorKind
	Field   string // 出錯的欄位名或帳號（視 Kind 而定）
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 讓 errors.Is/As 可以往下追內部原因
func (e *Error) Unwrap() error {
	return e.cause
}

// NewInvalidAmount 金額錯誤
func NewInvalidAmount(message string) *Error {
	return &Error{Kind: KindInvalidAmount, Message: message}
}

// NewInvalidField 欄位值錯誤，field 標明出錯欄位
func NewInvalidField(field, message string) *Error {
	return &Error{Kind: KindInvalidFieldValue, Field: field, Message: message}
}

// NewAccountNotFound 找不到帳戶，number 可為帳號或 id 字串
func NewAccountNotFound(number string) *Error {
	return &Error{
		Kind:    KindAccountNotFound,
		Field:   number,
		Message: "account not found: " + number,
	}
}

// NewAccountClosed 帳戶非 ACTIVE
func NewAccountClosed(number string) *Error {
	return &Error{
		Kind:    KindAccountClosed,
		Field:   number,
		Message: "account is not active: " + number,
	}
}

// NewInsufficientFunds 餘額不足
func NewInsufficientFunds(number string) *Error {
	return &Error{
		Kind:    KindInsufficientFunds,
		Field:   number,
		Message: "insufficient funds in account: " + number,
	}
}

// NewTransactionNotFound 找不到交易紀錄
func NewTransactionNotFound(transactionID string) *Error {
	return &Error{
		Kind:    KindTransactionNotFound,
		Field:   transactionID,
		Message: "transaction not found: " + transactionID,
	}
}

// NewBusy 鎖競爭逾時
func NewBusy(number string) *Error {
	return &Error{
		Kind:    KindBusy,
		Field:   number,
		Message: "account is busy, retry later: " + number,
	}
}

// NewTransferFailed 轉帳原子性失敗，包裝底層原因
func NewTransferFailed(cause error) *Error {
	return &Error{
		Kind:    KindTransferFailed,
		Message: "transfer failed, no balance was modified",
		cause:   cause,
	}
}

// NewInternal 非預期錯誤的統一包裝
func NewInternal(cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "internal error",
		cause:   cause,
	}
}

// KindOf 取出錯誤類別；非領域錯誤回傳 KindUnknown
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind 判斷錯誤是否屬於指定類別
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
