package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/KareemAzab21/BankSystem/internal/app/core/domain"
)

// Engine 餘額異動引擎：系統的核心
// 每個操作對其觸及的帳戶而言是原子的——
// 在帳號鎖內完成「讀取 → 驗證 → 異動 → 提交」整段流程，
// 提交本身由 LedgerStore.CommitMutation 保證全有或全無
type Engine struct {
	store LedgerStore
	locks *accountLocker
}

// NewEngine 建立引擎，lockWait 為鎖等待上限（<= 0 使用預設值）
func NewEngine(store LedgerStore, lockWait time.Duration) *Engine {
	return &Engine{
		store: store,
		locks: newAccountLocker(lockWait),
	}
}

// TransferCommand 轉帳指令
type TransferCommand struct {
	SourceNumber      string
	DestinationNumber string
	Amount            domain.Money
	Description       string
	// ReferenceID 選填：呼叫端提供的冪等參考編號（UUID 字串）
	// 重試時帶同一個編號即不會重複入帳
	ReferenceID string
}

// TransferResult 轉帳結果
type TransferResult struct {
	TransactionID     string                   `json:"transaction_id"`
	SourceNumber      string                   `json:"source_account_number"`
	DestinationNumber string                   `json:"destination_account_number"`
	Amount            domain.Money             `json:"amount"`
	Timestamp         time.Time                `json:"timestamp"`
	Status            domain.TransactionStatus `json:"status"`
	Message           string                   `json:"message"`
}

// WithAccountLock 在帳號鎖內執行 fn
// 生命週期操作（關閉、更新）經由此處與餘額異動共用同一張鎖表，
// 其「重讀 → 落地」區間內不會有並行入帳被覆寫
func (e *Engine) WithAccountLock(ctx context.Context, number string, fn func(ctx context.Context) error) error {
	release, err := e.locks.acquire(ctx, number)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Deposit 存款
// 流程：驗證金額 → 鎖帳號 → 載入 → 狀態檢查與精確加法 → 原子提交帳戶與紀錄
func (e *Engine) Deposit(ctx context.Context, number string, amount domain.Money) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, domain.NewInvalidAmount("deposit amount must be positive")
	}

	release, err := e.locks.acquire(ctx, number)
	if err != nil {
		return nil, err
	}
	defer release()

	account, err := e.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := account.Deposit(amount); err != nil {
		return nil, err
	}

	record := domain.NewDepositRecord(domain.NewTransactionID(), account.Number, amount)
	if err := e.store.CommitMutation(ctx, []*domain.Account{account}, record); err != nil {
		return nil, domain.NewInternal(err)
	}
	return account, nil
}

// Withdraw 提款，除存款的前置條件外還要求餘額足夠
func (e *Engine) Withdraw(ctx context.Context, number string, amount domain.Money) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, domain.NewInvalidAmount("withdrawal amount must be positive")
	}

	release, err := e.locks.acquire(ctx, number)
	if err != nil {
		return nil, err
	}
	defer release()

	account, err := e.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := account.Withdraw(amount); err != nil {
		return nil, err
	}

	record := domain.NewWithdrawalRecord(domain.NewTransactionID(), account.Number, amount)
	if err := e.store.CommitMutation(ctx, []*domain.Account{account}, record); err != nil {
		return nil, domain.NewInternal(err)
	}
	return account, nil
}

// Transfer 轉帳：原子的雙帳戶異動
// 驗證順序固定為「先來源、後目的」，兩個帳戶都有問題時回報結果才有決定性
func (e *Engine) Transfer(ctx context.Context, cmd TransferCommand) (*TransferResult, error) {
	if !cmd.Amount.IsPositive() {
		return nil, domain.NewInvalidAmount("transfer amount must be positive")
	}
	if cmd.SourceNumber == cmd.DestinationNumber {
		return nil, domain.NewInvalidField("destinationAccountNumber",
			"source and destination accounts must differ")
	}

	transactionID := cmd.ReferenceID
	if transactionID != "" {
		if _, err := uuid.Parse(transactionID); err != nil {
			return nil, domain.NewInvalidField("referenceId", "reference id must be a UUID: "+transactionID)
		}
	} else {
		transactionID = domain.NewTransactionID()
	}

	// 兩個帳號依固定全序取鎖，鎖覆蓋到紀錄落地為止
	release, err := e.locks.acquire(ctx, cmd.SourceNumber, cmd.DestinationNumber)
	if err != nil {
		return nil, err
	}
	defer release()

	// 冪等：同一個參考編號已有落地紀錄時，直接回覆先前的結果，不重複入帳
	// 查詢放在鎖內，兩筆帶同編號的並行重試不會同時通過
	if cmd.ReferenceID != "" {
		if prior, err := e.store.FindByTransactionID(ctx, transactionID); err == nil {
			return resultFromRecord(prior, "transfer already processed"), nil
		} else if !domain.IsKind(err, domain.KindTransactionNotFound) {
			return nil, domain.NewInternal(err)
		}
	}

	source, err := e.store.FindByNumber(ctx, cmd.SourceNumber)
	if err != nil {
		return nil, err
	}
	destination, err := e.store.FindByNumber(ctx, cmd.DestinationNumber)
	if err != nil {
		return nil, err
	}

	// 先檢查來源、再檢查目的
	if !source.IsActive() {
		return nil, domain.NewAccountClosed(source.Number)
	}
	if !destination.IsActive() {
		return nil, domain.NewAccountClosed(destination.Number)
	}
	if source.Balance.LessThan(cmd.Amount) {
		return nil, domain.NewInsufficientFunds(source.Number)
	}

	if err := source.Withdraw(cmd.Amount); err != nil {
		return nil, err
	}
	if err := destination.Deposit(cmd.Amount); err != nil {
		return nil, err
	}

	record := domain.NewTransferRecord(transactionID, source.Number, destination.Number, cmd.Amount, cmd.Description)
	if err := e.store.CommitMutation(ctx, []*domain.Account{source, destination}, record); err != nil {
		// 提交是全有或全無的：走到這裡代表沒有任何餘額被改動，呼叫端可重試
		return nil, domain.NewTransferFailed(err)
	}

	return resultFromRecord(record, "transfer completed successfully"), nil
}

func resultFromRecord(record *domain.Transaction, message string) *TransferResult {
	return &TransferResult{
		TransactionID:     record.TransactionID,
		SourceNumber:      record.SourceNumber,
		DestinationNumber: record.DestinationNumber,
		Amount:            record.Amount,
		Timestamp:         record.Timestamp,
		Status:            record.Status,
		Message:           message,
	}
}
