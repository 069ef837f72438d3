package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/KareemAzab21/BankSystem/internal/app/core/domain"
)

const (
	// accountNumberLength 對外帳號固定 10 位數字
	accountNumberLength = 10
	// maxNumberAttempts 開戶時帳號碰撞重試上限，用罄視為內部錯誤
	maxNumberAttempts = 10
)

// Service 帳本服務：被排除在外的傳輸層的唯一入口
// 只負責解析輸入、委派引擎、正規化錯誤與記錄日誌，本身不做業務邏輯
// 呼叫者身分 (actor) 一律由參數顯式傳入，不依賴任何全域安全上下文
type Service struct {
	store  LedgerStore
	engine *Engine
	log    *slog.Logger
}

// NewService 建立帳本服務
func NewService(store LedgerStore, engine *Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		engine: engine,
		log:    logger,
	}
}

// OpenAccountCommand 開戶指令
// InitialBalance 為十進位字串，空字串視為 0
type OpenAccountCommand struct {
	OwnerID        int64
	Type           string
	InitialBalance string
}

// UpdateAccountCommand 帳戶中繼資料的部分更新，空字串代表不變更
type UpdateAccountCommand struct {
	Type   string
	Status string
}

// TransferRequest 轉帳請求（金額為十進位字串）
type TransferRequest struct {
	SourceNumber      string
	DestinationNumber string
	Amount            string
	Description       string
	ReferenceID       string
}

// OpenAccount 開立帳戶
// 擁有者必須存在；帳號隨機產生並向儲存層做唯一性碰撞檢查，重試有上限
func (s *Service) OpenAccount(ctx context.Context, actor string, cmd OpenAccountCommand) (*domain.Account, error) {
	s.log.Info("opening account", "actor", actor, "owner_id", cmd.OwnerID, "type", cmd.Type)

	accountType, err := domain.ParseAccountType(cmd.Type)
	if err != nil {
		return nil, s.fail("open account", err)
	}

	balance := domain.MoneyZero
	if cmd.InitialBalance != "" {
		balance, err = domain.ParseMoney(cmd.InitialBalance)
		if err != nil {
			return nil, s.fail("open account", err)
		}
	}
	if balance.IsNegative() {
		return nil, s.fail("open account", domain.NewInvalidAmount("initial balance must not be negative"))
	}

	exists, err := s.store.UserExists(ctx, cmd.OwnerID)
	if err != nil {
		return nil, s.fail("open account", err)
	}
	if !exists {
		return nil, s.fail("open account",
			domain.NewInvalidField("ownerId", "owner not found: "+strconv.FormatInt(cmd.OwnerID, 10)))
	}

	number, err := s.generateAccountNumber(ctx)
	if err != nil {
		return nil, s.fail("open account", err)
	}

	account, err := domain.NewAccount(number, cmd.OwnerID, balance, accountType)
	if err != nil {
		return nil, s.fail("open account", err)
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, s.fail("open account", err)
	}

	s.log.Info("account opened", "actor", actor, "account", account.Number, "balance", account.Balance)
	return account, nil
}

// generateAccountNumber 產生 10 位數隨機帳號，向儲存層確認未被占用
// 連續碰撞超過上限時回報內部錯誤（帳號空間異常擁擠，不該發生）
func (s *Service) generateAccountNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		digits := make([]byte, accountNumberLength)
		for i := range digits {
			digits[i] = byte('0' + rand.Intn(10))
		}
		number := string(digits)

		taken, err := s.store.ExistsByNumber(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", domain.NewInternal(errors.New("exhausted account number generation attempts"))
}

// GetAccount 以帳號或代理鍵查詢帳戶快照
// 10 位數字視為帳號，其餘可解析的整數視為代理鍵
func (s *Service) GetAccount(ctx context.Context, ref string) (*domain.Account, error) {
	if looksLikeAccountNumber(ref) {
		account, err := s.store.FindByNumber(ctx, ref)
		if err != nil {
			return nil, s.fail("get account", err)
		}
		return account, nil
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, s.fail("get account",
			domain.NewInvalidField("accountNumber", "not an account number or id: "+ref))
	}
	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail("get account", err)
	}
	return account, nil
}

func looksLikeAccountNumber(ref string) bool {
	if len(ref) != accountNumberLength {
		return false
	}
	for _, c := range ref {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CloseAccount 關閉帳戶
// 不檢查餘額、重複關閉靜默成功（沿用既有產品行為，已由測試鎖定）
func (s *Service) CloseAccount(ctx context.Context, actor string, id int64) error {
	s.log.Info("closing account", "actor", actor, "account_id", id)

	// 先以代理鍵查出帳號，再進鎖內重讀後落地
	// Save 寫回整個快照，鎖外讀寫會覆寫並行入帳的餘額
	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return s.fail("close account", err)
	}
	err = s.engine.WithAccountLock(ctx, account.Number, func(ctx context.Context) error {
		fresh, err := s.store.FindByID(ctx, id)
		if err != nil {
			return err
		}
		fresh.Close()
		return s.store.Save(ctx, fresh)
	})
	if err != nil {
		return s.fail("close account", err)
	}

	s.log.Info("account closed", "actor", actor, "account", account.Number)
	return nil
}

// UpdateAccount 部分更新帳戶的類型與狀態，非法列舉值回報 InvalidFieldValue
func (s *Service) UpdateAccount(ctx context.Context, actor string, id int64, cmd UpdateAccountCommand) (*domain.Account, error) {
	s.log.Info("updating account", "actor", actor, "account_id", id)

	// 列舉值先在鎖外解析，鎖內只做「重讀 → 套用 → 落地」
	var accountType domain.AccountType
	if cmd.Type != "" {
		parsed, err := domain.ParseAccountType(cmd.Type)
		if err != nil {
			return nil, s.fail("update account", err)
		}
		accountType = parsed
	}
	var status domain.AccountStatus
	if cmd.Status != "" {
		parsed, err := domain.ParseAccountStatus(cmd.Status)
		if err != nil {
			return nil, s.fail("update account", err)
		}
		status = parsed
	}

	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail("update account", err)
	}

	var updated *domain.Account
	err = s.engine.WithAccountLock(ctx, account.Number, func(ctx context.Context) error {
		fresh, err := s.store.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if cmd.Type != "" {
			fresh.Type = accountType
		}
		if cmd.Status != "" {
			fresh.Status = status
		}
		fresh.UpdatedAt = time.Now()
		if err := s.store.Save(ctx, fresh); err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, s.fail("update account", err)
	}
	return updated, nil
}

// Deposit 存款：在邊界解析十進位金額後委派引擎
func (s *Service) Deposit(ctx context.Context, actor, number, amount string) (*domain.Account, error) {
	s.log.Info("deposit requested", "actor", actor, "account", number, "amount", amount)

	money, err := domain.ParseMoney(amount)
	if err != nil {
		return nil, s.fail("deposit", err)
	}
	account, err := s.engine.Deposit(ctx, number, money)
	if err != nil {
		return nil, s.fail("deposit", err)
	}

	s.log.Info("deposit completed", "actor", actor, "account", number, "balance", account.Balance)
	return account, nil
}

// Withdraw 提款
func (s *Service) Withdraw(ctx context.Context, actor, number, amount string) (*domain.Account, error) {
	s.log.Info("withdrawal requested", "actor", actor, "account", number, "amount", amount)

	money, err := domain.ParseMoney(amount)
	if err != nil {
		return nil, s.fail("withdraw", err)
	}
	account, err := s.engine.Withdraw(ctx, number, money)
	if err != nil {
		return nil, s.fail("withdraw", err)
	}

	s.log.Info("withdrawal completed", "actor", actor, "account", number, "balance", account.Balance)
	return account, nil
}

// Transfer 轉帳
func (s *Service) Transfer(ctx context.Context, actor string, req TransferRequest) (*TransferResult, error) {
	s.log.Info("transfer requested",
		"actor", actor, "source", req.SourceNumber, "destination", req.DestinationNumber, "amount", req.Amount)

	money, err := domain.ParseMoney(req.Amount)
	if err != nil {
		return nil, s.fail("transfer", err)
	}
	result, err := s.engine.Transfer(ctx, TransferCommand{
		SourceNumber:      req.SourceNumber,
		DestinationNumber: req.DestinationNumber,
		Amount:            money,
		Description:       req.Description,
		ReferenceID:       req.ReferenceID,
	})
	if err != nil {
		return nil, s.fail("transfer", err)
	}

	s.log.Info("transfer completed",
		"actor", actor, "transaction_id", result.TransactionID, "amount", result.Amount)
	return result, nil
}

// ListTransactions 列出涉及某帳號的交易，新到舊，以頁標記續讀
func (s *Service) ListTransactions(ctx context.Context, number string, page PageRequest) (*TransactionPage, error) {
	if _, err := s.store.FindByNumber(ctx, number); err != nil {
		return nil, s.fail("list transactions", err)
	}
	result, err := s.store.ListByAccount(ctx, number, page)
	if err != nil {
		return nil, s.fail("list transactions", err)
	}
	return result, nil
}

// GetTransaction 以對外追蹤號查詢單筆交易
func (s *Service) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	record, err := s.store.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, s.fail("get transaction", err)
	}
	return record, nil
}

// fail 正規化錯誤：領域錯誤原樣放行並記 warn，其餘一律包成 Internal 並記 error
// 任何失敗都不會讓行程崩潰，也不會被靜默吞掉
func (s *Service) fail(operation string, err error) error {
	if domain.KindOf(err) != domain.KindUnknown {
		if domain.KindOf(err) == domain.KindInternal {
			s.log.Error(operation+" failed", "error", err)
		} else {
			s.log.Warn(operation+" rejected", "error", err)
		}
		return err
	}
	s.log.Error(operation+" failed", "error", err)
	return domain.NewInternal(err)
}
