// Package mysql 提供關聯式資料庫版的帳本儲存（GORM）
// 每次餘額異動都在單一資料庫交易內完成：
// 悲觀鎖定帳戶列 → 更新餘額 → 建立交易紀錄，全有或全無
package mysql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KareemAzab21/BankSystem/internal/app/core/domain"
	"github.com/KareemAzab21/BankSystem/internal/app/core/usecase"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// userRow 對應 users 表（User CRUD 在範圍外，只留開戶時的存在性檢查）
type userRow struct {
	ID       int64  `gorm:"primaryKey"`
	Username string `gorm:"size:64"`
}

func (*userRow) TableName() string {
	return "users"
}

// accountRow 對應 accounts 表
type accountRow struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Number    string          `gorm:"column:account_number;size:20;uniqueIndex"`
	OwnerID   int64           `gorm:"column:owner_id;index"`
	Balance   decimal.Decimal `gorm:"type:decimal(19,2)"`
	Type      string          `gorm:"column:account_type;size:16"`
	Status    string          `gorm:"size:16"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (*accountRow) TableName() string {
	return "accounts"
}

// transactionRow 對應 transactions 表（僅追加，絕不更新或刪除）
type transactionRow struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	TransactionID     string          `gorm:"column:transaction_id;size:36;uniqueIndex"`
	SourceNumber      string          `gorm:"column:source_account_number;size:20;index"`
	DestinationNumber string          `gorm:"column:destination_account_number;size:20;index"`
	Amount            decimal.Decimal `gorm:"type:decimal(19,2)"`
	Type              string          `gorm:"size:16"`
	Status            string          `gorm:"size:16"`
	Description       string          `gorm:"size:255"`
	Timestamp         time.Time
}

func (*transactionRow) TableName() string {
	return "transactions"
}

// Store 關聯式資料庫帳本
type Store struct {
	db *gorm.DB
}

// NewStore 以既有的 gorm 連線建立儲存層
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate 建立或升級資料表結構
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&userRow{}, &accountRow{}, &transactionRow{})
}

// EnsureOwner 確保擁有者存在（佈建用，不屬於對外服務面）
func (s *Store) EnsureOwner(ctx context.Context, ownerID int64, username string) error {
	row := userRow{ID: ownerID, Username: username}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// UserExists 擁有者是否存在
func (s *Store) UserExists(ctx context.Context, ownerID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", ownerID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByID 以代理鍵查帳戶
func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewAccountNotFound(strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, err
	}
	return accountFromRow(&row)
}

// FindByNumber 以對外帳號查帳戶
func (s *Store) FindByNumber(ctx context.Context, number string) (*domain.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).First(&row, "account_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewAccountNotFound(number)
	}
	if err != nil {
		return nil, err
	}
	return accountFromRow(&row)
}

// ExistsByNumber 帳號是否已被占用
func (s *Store) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&accountRow{}).
		Where("account_number = ?", number).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create 新增帳戶並回填代理鍵
func (s *Store) Create(ctx context.Context, account *domain.Account) error {
	row := rowFromAccount(account)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	account.ID = row.ID
	return nil
}

// Save 儲存既有帳戶的狀態
func (s *Store) Save(ctx context.Context, account *domain.Account) error {
	row := rowFromAccount(account)
	result := s.db.WithContext(ctx).Model(&accountRow{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"balance":      row.Balance,
			"account_type": row.Type,
			"status":       row.Status,
			"updated_at":   row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewAccountNotFound(account.Number)
	}
	return nil
}

// CommitMutation 以單一資料庫交易持久化所有帳戶異動與交易紀錄
// 先以 SELECT ... FOR UPDATE 鎖住涉及的帳戶列，再寫入餘額與紀錄；
// 交易內任何錯誤都會整體回滾，絕不留下半套狀態
func (s *Store) CommitMutation(ctx context.Context, accounts []*domain.Account, record *domain.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 同一個追蹤號已有紀錄代表重複提交，讓上層以冪等查詢處理
		var existing transactionRow
		err := tx.Where("transaction_id = ?", record.TransactionID).First(&existing).Error
		if err == nil {
			return fmt.Errorf("duplicate transaction id: %s", record.TransactionID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		numbers := record.LockNumbers()
		locking := tx
		// SQLite 不支援 FOR UPDATE，交易本身已是序列化寫入
		if tx.Dialector.Name() == "mysql" {
			locking = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rows []accountRow
		if err := locking.Where("account_number IN ?", numbers).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) != len(numbers) {
			return fmt.Errorf("expected %d accounts, locked %d", len(numbers), len(rows))
		}

		for _, account := range accounts {
			row := rowFromAccount(account)
			result := tx.Model(&accountRow{}).
				Where("account_number = ?", row.Number).
				Updates(map[string]any{
					"balance":    row.Balance,
					"status":     row.Status,
					"updated_at": row.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("account row vanished: %s", row.Number)
			}
		}

		recordRow := rowFromTransaction(record)
		if err := tx.Create(recordRow).Error; err != nil {
			return err
		}
		record.ID = recordRow.ID
		return nil
	})
}

// FindByTransactionID 以對外追蹤號查交易
func (s *Store) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var row transactionRow
	err := s.db.WithContext(ctx).First(&row, "transaction_id = ?", transactionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewTransactionNotFound(transactionID)
	}
	if err != nil {
		return nil, err
	}
	return transactionFromRow(&row)
}

// ListByAccount 列出涉及某帳號的交易，以代理鍵遞減排序（新到舊）
// 頁標記是上一頁最後一筆的代理鍵，續讀以 id < 標記篩選，
// 兩頁之間有新紀錄落地也不會重複或跳頁
func (s *Store) ListByAccount(ctx context.Context, number string, page usecase.PageRequest) (*usecase.TransactionPage, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	query := s.db.WithContext(ctx).
		Where("source_account_number = ? OR destination_account_number = ?", number, number)
	if page.Token != "" {
		before, err := strconv.ParseInt(page.Token, 10, 64)
		if err != nil || before <= 0 {
			return nil, domain.NewInvalidField("pageToken", "malformed page token: "+page.Token)
		}
		query = query.Where("id < ?", before)
	}

	var rows []transactionRow
	// 多取一筆以判斷是否還有下一頁
	err := query.Order("id DESC").Limit(limit + 1).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	nextToken := ""
	if len(rows) > limit {
		rows = rows[:limit]
		nextToken = strconv.FormatInt(rows[limit-1].ID, 10)
	}
	items := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		record, err := transactionFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	return &usecase.TransactionPage{Items: items, NextToken: nextToken}, nil
}

func rowFromAccount(account *domain.Account) *accountRow {
	return &accountRow{
		ID:        account.ID,
		Number:    account.Number,
		OwnerID:   account.OwnerID,
		Balance:   account.Balance.Decimal(),
		Type:      string(account.Type),
		Status:    string(account.Status),
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

func accountFromRow(row *accountRow) (*domain.Account, error) {
	balance, err := domain.MoneyFromDecimal(row.Balance)
	if err != nil {
		return nil, domain.NewInternal(fmt.Errorf("stored balance for %s: %w", row.Number, err))
	}
	return &domain.Account{
		ID:        row.ID,
		Number:    row.Number,
		OwnerID:   row.OwnerID,
		Balance:   balance,
		Type:      domain.AccountType(row.Type),
		Status:    domain.AccountStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func rowFromTransaction(record *domain.Transaction) *transactionRow {
	return &transactionRow{
		ID:                record.ID,
		TransactionID:     record.TransactionID,
		SourceNumber:      record.SourceNumber,
		DestinationNumber: record.DestinationNumber,
		Amount:            record.Amount.Decimal(),
		Type:              string(record.Type),
		Status:            string(record.Status),
		Description:       record.Description,
		Timestamp:         record.Timestamp,
	}
}

func transactionFromRow(row *transactionRow) (*domain.Transaction, error) {
	amount, err := domain.MoneyFromDecimal(row.Amount)
	if err != nil {
		return nil, domain.NewInternal(fmt.Errorf("stored amount for %s: %w", row.TransactionID, err))
	}
	return &domain.Transaction{
		ID:                row.ID,
		TransactionID:     row.TransactionID,
		SourceNumber:      row.SourceNumber,
		DestinationNumber: row.DestinationNumber,
		Amount:            amount,
		Type:              domain.TransactionType(row.Type),
		Status:            domain.TransactionStatus(row.Status),
		Description:       row.Description,
		Timestamp:         row.Timestamp,
	}, nil
}

var _ usecase.LedgerStore = (*Store)(nil)
