package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType 交易類型
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
)

// TransactionStatus 交易狀態
// 持久化的紀錄一律是終態（COMPLETED 或 FAILED），外界永遠看不到半套的交易
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusPending   TransactionStatus = "PENDING"
)

// Transaction 交易紀錄：僅追加的稽核日誌，建立後絕不修改
// 以帳號字串弱參照帳戶；帳戶關閉後紀錄仍然保留
type Transaction struct {
	// ID 儲存層代理鍵
	ID int64 `json:"id"`
	// TransactionID 對外追蹤號（UUID 字串），全域唯一，可供冪等查詢
	TransactionID string `json:"transaction_id"`
	// SourceNumber 來源帳號；存款時為空
	SourceNumber string `json:"source_account_number,omitempty"`
	// DestinationNumber 目的帳號；提款時為空
	DestinationNumber string `json:"destination_account_number,omitempty"`
	// Amount 金額，恆為正
	Amount      Money             `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	// Timestamp 交易定案的時刻
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionID 產生新的對外交易追蹤號（128-bit 隨機，抗碰撞）
func NewTransactionID() string {
	return uuid.NewString()
}

// NewDepositRecord 建立一筆已完成的存款紀錄（只有目的帳戶）
func NewDepositRecord(transactionID, destination string, amount Money) *Transaction {
	return &Transaction{
		TransactionID:     transactionID,
		DestinationNumber: destination,
		Amount:            amount,
		Type:              TransactionTypeDeposit,
		Status:            TransactionStatusCompleted,
		Timestamp:         time.Now(),
	}
}

// NewWithdrawalRecord 建立一筆已完成的提款紀錄（只有來源帳戶）
func NewWithdrawalRecord(transactionID, source string, amount Money) *Transaction {
	return &Transaction{
		TransactionID: transactionID,
		SourceNumber:  source,
		Amount:        amount,
		Type:          TransactionTypeWithdrawal,
		Status:        TransactionStatusCompleted,
		Timestamp:     time.Now(),
	}
}

// NewTransferRecord 建立一筆已完成的轉帳紀錄（兩個帳戶都參照）
func NewTransferRecord(transactionID, source, destination string, amount Money, description string) *Transaction {
	return &Transaction{
		TransactionID:     transactionID,
		SourceNumber:      source,
		DestinationNumber: destination,
		Amount:            amount,
		Type:              TransactionTypeTransfer,
		Status:            TransactionStatusCompleted,
		Description:       description,
		Timestamp:         time.Now(),
	}
}

// Touches 此紀錄是否涉及指定帳號（來源或目的）
func (t *Transaction) Touches(number string) bool {
	return t.SourceNumber == number || t.DestinationNumber == number
}

// LockNumbers 回傳需要鎖定的帳號，固定依字典序排序以避免死鎖
func (t *Transaction) LockNumbers() []string {
	numbers := make([]string, 0, 2)
	if t.SourceNumber != "" {
		numbers = append(numbers, t.SourceNumber)
	}
	if t.DestinationNumber != "" && t.DestinationNumber != t.SourceNumber {
		numbers = append(numbers, t.DestinationNumber)
	}
	if len(numbers) == 2 && numbers[1] < numbers[0] {
		numbers[0], numbers[1] = numbers[1], numbers[0]
	}
	return numbers
}

// Clone 回傳值拷貝
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}
