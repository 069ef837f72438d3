package domain

import "time"

// AccountType 帳戶類型（封閉列舉）
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

// ParseAccountType 解析帳戶類型字串；不認得的值回傳 InvalidFieldValue
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountTypeChecking, AccountTypeSavings:
		return AccountType(s), nil
	default:
		return "", NewInvalidField("accountType", "invalid account type: "+s)
	}
}

// AccountStatus 帳戶狀態
// 目前只有 ACTIVE → CLOSED 單向轉移，CLOSED 為終態
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// ParseAccountStatus 解析帳戶狀態字串
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch AccountStatus(s) {
	case AccountStatusActive, AccountStatusClosed:
		return AccountStatus(s), nil
	default:
		return "", NewInvalidField("status", "invalid account status: "+s)
	}
}

// Account 帳戶實體
// ID 是儲存層指派的代理鍵；Number 是對外穩定可見的 10 位數帳號
// OwnerID 只以識別碼弱參照 User，不在記憶體中形成循環
type Account struct {
	ID        int64         `json:"id"`
	Number    string        `json:"account_number"`
	OwnerID   int64         `json:"owner_id"`
	Balance   Money         `json:"balance"`
	Type      AccountType   `json:"account_type"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewAccount 開立帳戶，初始餘額不得為負
func NewAccount(number string, ownerID int64, balance Money, accountType AccountType) (*Account, error) {
	if balance.IsNegative() {
		return nil, NewInvalidAmount("initial balance must not be negative")
	}
	now := time.Now()
	return &Account{
		Number:    number,
		OwnerID:   ownerID,
		Balance:   balance,
		Type:      accountType,
		Status:    AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive 是否可參與異動
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Deposit 存入金額
// 不變量：金額必須為正、帳戶必須 ACTIVE；餘額在此邊界保證永不為負
func (a *Account) Deposit(amount Money) error {
	if !amount.IsPositive() {
		return NewInvalidAmount("deposit amount must be positive")
	}
	if !a.IsActive() {
		return NewAccountClosed(a.Number)
	}
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now()
	return nil
}

// Withdraw 提出金額，餘額不足回傳 InsufficientFunds
func (a *Account) Withdraw(amount Money) error {
	if !amount.IsPositive() {
		return NewInvalidAmount("withdrawal amount must be positive")
	}
	if !a.IsActive() {
		return NewAccountClosed(a.Number)
	}
	if a.Balance.LessThan(amount) {
		return NewInsufficientFunds(a.Number)
	}
	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = time.Now()
	return nil
}

// Close 關閉帳戶：無條件設為 CLOSED
// 重複關閉視為靜默成功、不檢查餘額是否為零（沿用既有產品行為）
func (a *Account) Close() {
	a.Status = AccountStatusClosed
	a.UpdatedAt = time.Now()
}

// Clone 回傳值拷貝，避免呼叫端越權修改內部狀態
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}
