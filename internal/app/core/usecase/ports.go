package usecase

import (
	"context"

	"github.com/KareemAzab21/BankSystem/internal/app/core/domain"
)

// PageRequest 分頁請求
// Token 為不透明的續讀標記，空字串代表從頭開始
type PageRequest struct {
	Token string
	Limit int
}

// TransactionPage 一頁交易紀錄，順序為新到舊
// NextToken 為空代表已到結尾
type TransactionPage struct {
	Items     []*domain.Transaction
	NextToken string
}

// AccountStore 帳戶儲存的協作介面
// 找不到帳戶時回傳 AccountNotFound，不以 nil 表示缺席
type AccountStore interface {
	// FindByID 以代理鍵查帳戶
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	// FindByNumber 以對外帳號查帳戶
	FindByNumber(ctx context.Context, number string) (*domain.Account, error)
	// ExistsByNumber 帳號是否已被占用（開戶時的碰撞檢查）
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	// Create 新增帳戶並回填代理鍵
	Create(ctx context.Context, account *domain.Account) error
	// Save 儲存既有帳戶的狀態
	Save(ctx context.Context, account *domain.Account) error
}

// TransactionStore 交易日誌的協作介面（僅追加）
type TransactionStore interface {
	// FindByTransactionID 以對外追蹤號查交易
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	// ListByAccount 列出涉及某帳號的交易，新到舊，可分頁續讀
	ListByAccount(ctx context.Context, number string, page PageRequest) (*TransactionPage, error)
}

// UserDirectory 使用者目錄（外部協作者）：開戶時確認擁有者存在
type UserDirectory interface {
	UserExists(ctx context.Context, ownerID int64) (bool, error)
}

// LedgerStore 帳本儲存的完整介面
// CommitMutation 是原子性的關鍵：帳戶異動與交易紀錄要嘛全部落地、要嘛全部不落地
type LedgerStore interface {
	AccountStore
	TransactionStore
	UserDirectory

	// CommitMutation 以單一原子單位持久化所有餘額變更與交易紀錄
	// 並行讀取者永遠看不到「來源已扣款、目的未入帳」的中間狀態
	CommitMutation(ctx context.Context, accounts []*domain.Account, record *domain.Transaction) error
}
