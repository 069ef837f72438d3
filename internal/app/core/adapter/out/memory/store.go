// Package memory 提供記憶體版的帳本儲存
// 以 RWMutex 序列化寫入，搭配 WAL 先寫日誌再套用，重啟時重放重建狀態
// 對外只交換值拷貝，內部指標絕不外流
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/KareemAzab21/BankSystem/internal/app/core/domain"
	"github.com/KareemAzab21/BankSystem/internal/app/core/usecase"
	"github.com/KareemAzab21/BankSystem/pkg/wal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// 日誌紀錄的類別
const (
	entryKindOwner    = "owner"
	entryKindAccount  = "account"
	entryKindMutation = "mutation"
)

// walEntry WAL 的一筆日誌
// owner: 註冊擁有者；account: 單一帳戶快照（開戶或中繼資料更新）
// mutation: 一次餘額異動的帳戶快照們 + 對應的交易紀錄
type walEntry struct {
	Kind     string              `json:"kind"`
	OwnerID  int64               `json:"owner_id,omitempty"`
	Accounts []*domain.Account   `json:"accounts,omitempty"`
	Record   *domain.Transaction `json:"record,omitempty"`
}

// Store 記憶體帳本
type Store struct {
	mu sync.RWMutex
	// 帳戶索引：帳號 → 帳戶、代理鍵 → 帳戶（同一份指標）
	byNumber map[string]*domain.Account
	byID     map[int64]*domain.Account
	// 交易日誌：僅追加；txByID 供冪等查詢
	records []*domain.Transaction
	txByID  map[string]*domain.Transaction
	// 擁有者目錄（外部 User 實體的替身）
	owners map[int64]bool

	nextAccountID int64
	journal       *wal.WAL
}

// NewStore 建立記憶體帳本；journal 可為 nil（純記憶體、無持久化）
// journal 非 nil 時先重放既有日誌重建狀態
func NewStore(journal *wal.WAL) (*Store, error) {
	s := &Store{
		byNumber: make(map[string]*domain.Account),
		byID:     make(map[int64]*domain.Account),
		txByID:   make(map[string]*domain.Transaction),
		owners:   make(map[int64]bool),
		journal:  journal,
	}
	if journal != nil {
		if err := s.recover(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// recover 重放 WAL 重建帳本狀態（單執行緒，無需鎖）
func (s *Store) recover() error {
	return s.journal.ReadAll(func(raw []byte) error {
		var entry walEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("corrupt journal entry: %w", err)
		}
		s.apply(&entry)
		return nil
	})
}

// apply 將一筆日誌套用到記憶體狀態
func (s *Store) apply(entry *walEntry) {
	switch entry.Kind {
	case entryKindOwner:
		s.owners[entry.OwnerID] = true
	case entryKindAccount:
		for _, account := range entry.Accounts {
			s.upsertAccount(account)
		}
	case entryKindMutation:
		for _, account := range entry.Accounts {
			s.upsertAccount(account)
		}
		if entry.Record != nil {
			s.appendRecord(entry.Record)
		}
	}
}

func (s *Store) upsertAccount(account *domain.Account) {
	cp := account.Clone()
	if cp.ID == 0 {
		s.nextAccountID++
		cp.ID = s.nextAccountID
	} else if cp.ID > s.nextAccountID {
		s.nextAccountID = cp.ID
	}
	s.byNumber[cp.Number] = cp
	s.byID[cp.ID] = cp
}

func (s *Store) appendRecord(record *domain.Transaction) {
	cp := record.Clone()
	if cp.ID == 0 {
		cp.ID = int64(len(s.records) + 1)
	}
	s.records = append(s.records, cp)
	s.txByID[cp.TransactionID] = cp
}

// logEntry 寫入 WAL；journal 為 nil 時跳過
func (s *Store) logEntry(entry *walEntry) error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Append(entry)
}

// RegisterOwner 註冊一位帳戶擁有者（User CRUD 在範圍外，這裡只留存在性）
func (s *Store) RegisterOwner(ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[ownerID] {
		return nil
	}
	if err := s.logEntry(&walEntry{Kind: entryKindOwner, OwnerID: ownerID}); err != nil {
		return err
	}
	s.owners[ownerID] = true
	return nil
}

// UserExists 擁有者是否存在
func (s *Store) UserExists(ctx context.Context, ownerID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[ownerID], nil
}

// FindByID 以代理鍵查帳戶，回傳值拷貝
func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byID[id]
	if !ok {
		return nil, domain.NewAccountNotFound(strconv.FormatInt(id, 10))
	}
	return account.Clone(), nil
}

// FindByNumber 以帳號查帳戶，回傳值拷貝
func (s *Store) FindByNumber(ctx context.Context, number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byNumber[number]
	if !ok {
		return nil, domain.NewAccountNotFound(number)
	}
	return account.Clone(), nil
}

// ExistsByNumber 帳號是否已被占用
func (s *Store) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byNumber[number]
	return ok, nil
}

// Create 新增帳戶並回填代理鍵
func (s *Store) Create(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[account.Number]; ok {
		return domain.NewInternal(fmt.Errorf("duplicate account number: %s", account.Number))
	}
	s.nextAccountID++
	account.ID = s.nextAccountID
	if err := s.logEntry(&walEntry{Kind: entryKindAccount, Accounts: []*domain.Account{account}}); err != nil {
		return err
	}
	cp := account.Clone()
	s.byNumber[cp.Number] = cp
	s.byID[cp.ID] = cp
	return nil
}

// Save 儲存既有帳戶的狀態
func (s *Store) Save(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[account.Number]; !ok {
		return domain.NewAccountNotFound(account.Number)
	}
	if err := s.logEntry(&walEntry{Kind: entryKindAccount, Accounts: []*domain.Account{account}}); err != nil {
		return err
	}
	s.upsertAccount(account)
	return nil
}

// CommitMutation 原子地持久化帳戶異動與交易紀錄
// 順序是先寫日誌、日誌成功才改記憶體；整段在寫鎖內完成，
// 並行讀取者不可能看到只套用一半的狀態
func (s *Store) CommitMutation(ctx context.Context, accounts []*domain.Account, record *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range accounts {
		if _, ok := s.byNumber[account.Number]; !ok {
			return domain.NewAccountNotFound(account.Number)
		}
	}
	if _, ok := s.txByID[record.TransactionID]; ok {
		return domain.NewInternal(fmt.Errorf("duplicate transaction id: %s", record.TransactionID))
	}

	if err := s.logEntry(&walEntry{Kind: entryKindMutation, Accounts: accounts, Record: record}); err != nil {
		return err
	}
	for _, account := range accounts {
		s.upsertAccount(account)
	}
	s.appendRecord(record)
	record.ID = s.txByID[record.TransactionID].ID
	return nil
}

// FindByTransactionID 以對外追蹤號查交易，回傳值拷貝
func (s *Store) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.txByID[transactionID]
	if !ok {
		return nil, domain.NewTransactionNotFound(transactionID)
	}
	return record.Clone(), nil
}

// ListByAccount 列出涉及某帳號的交易，新到舊
// 頁標記是上一頁最後一筆的代理鍵（對呼叫端不透明的十進位字串），
// 續讀只取代理鍵更小的紀錄，兩頁之間有新紀錄落地也不會重複或跳頁
func (s *Store) ListByAccount(ctx context.Context, number string, page usecase.PageRequest) (*usecase.TransactionPage, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	before := int64(0)
	if page.Token != "" {
		parsed, err := strconv.ParseInt(page.Token, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, domain.NewInvalidField("pageToken", "malformed page token: "+page.Token)
		}
		before = parsed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// records 是舊到新的追加序（代理鍵遞增），由尾端往回掃即為新到舊
	items := make([]*domain.Transaction, 0, limit)
	nextToken := ""
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if before != 0 && record.ID >= before {
			continue
		}
		if !record.Touches(number) {
			continue
		}
		if len(items) == limit {
			nextToken = strconv.FormatInt(items[limit-1].ID, 10)
			break
		}
		items = append(items, record.Clone())
	}
	return &usecase.TransactionPage{Items: items, NextToken: nextToken}, nil
}

var _ usecase.LedgerStore = (*Store)(nil)
