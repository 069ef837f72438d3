package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/KareemAzab21/BankSystem/internal/app/core/domain"
	"github.com/KareemAzab21/BankSystem/internal/app/core/usecase"
	"github.com/KareemAzab21/BankSystem/pkg/wal"
)

func mustMoney(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(s)
	if err != nil {
		t.Fatalf("ParseMoney(%q): %v", s, err)
	}
	return m
}

func newAccount(t *testing.T, number, balance string) *domain.Account {
	t.Helper()
	account, err := domain.NewAccount(number, 1, mustMoney(t, balance), domain.AccountTypeChecking)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	return account
}

func TestStoreSnapshotIsolation(t *testing.T) {
	store, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	account := newAccount(t, "1111111111", "100.00")
	if err := store.Create(ctx, account); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 改動取回的快照不得影響儲存的狀態
	snapshot, err := store.FindByNumber(ctx, "1111111111")
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	snapshot.Balance = mustMoney(t, "0.01")
	snapshot.Status = domain.AccountStatusClosed

	fresh, err := store.FindByNumber(ctx, "1111111111")
	if err != nil {
		t.Fatalf("FindByNumber: %v", err)
	}
	if fresh.Balance.String() != "100.00" || fresh.Status != domain.AccountStatusActive {
		t.Fatalf("snapshot mutation leaked into store: %+v", fresh)
	}
}

func TestStoreCommitMutation(t *testing.T) {
	store, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	source := newAccount(t, "1111111111", "100.00")
	destination := newAccount(t, "2222222222", "50.00")
	if err := store.Create(ctx, source); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, destination); err != nil {
		t.Fatalf("Create: %v", err)
	}

	source.Balance = mustMoney(t, "70.00")
	destination.Balance = mustMoney(t, "80.00")
	record := domain.NewTransferRecord(domain.NewTransactionID(),
		"1111111111", "2222222222", mustMoney(t, "30.00"), "")

	if err := store.CommitMutation(ctx, []*domain.Account{source, destination}, record); err != nil {
		t.Fatalf("CommitMutation: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("record surrogate id not assigned")
	}

	got, err := store.FindByTransactionID(ctx, record.TransactionID)
	if err != nil {
		t.Fatalf("FindByTransactionID: %v", err)
	}
	if got.Amount.String() != "30.00" {
		t.Fatalf("record amount = %s, want 30.00", got.Amount)
	}

	// 同一追蹤號不得入帳兩次
	err = store.CommitMutation(ctx, []*domain.Account{source}, record.Clone())
	if err == nil {
		t.Fatal("duplicate transaction id accepted")
	}

	// 涉及未知帳戶的提交整體拒絕
	ghost := newAccount(t, "9999999999", "1.00")
	other := domain.NewDepositRecord(domain.NewTransactionID(), "9999999999", mustMoney(t, "1.00"))
	if err := store.CommitMutation(ctx, []*domain.Account{ghost}, other); domain.KindOf(err) != domain.KindAccountNotFound {
		t.Fatalf("kind = %v, want AccountNotFound", domain.KindOf(err))
	}
}

// 重開 Store 後由 WAL 重放出的狀態必須與關閉前一致
func TestStoreRecoversFromWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.wal")

	journal, err := wal.New(path)
	if err != nil {
		t.Fatalf("wal.New: %v", err)
	}
	store, err := NewStore(journal)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.RegisterOwner(7); err != nil {
		t.Fatalf("RegisterOwner: %v", err)
	}
	account := newAccount(t, "1111111111", "100.00")
	account.OwnerID = 7
	if err := store.Create(ctx, account); err != nil {
		t.Fatalf("Create: %v", err)
	}

	account.Balance = mustMoney(t, "130.00")
	record := domain.NewDepositRecord(domain.NewTransactionID(), "1111111111", mustMoney(t, "30.00"))
	if err := store.CommitMutation(ctx, []*domain.Account{account}, record); err != nil {
		t.Fatalf("CommitMutation: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := wal.New(path)
	if err != nil {
		t.Fatalf("wal.New reopen: %v", err)
	}
	defer reopened.Close()
	recovered, err := NewStore(reopened)
	if err != nil {
		t.Fatalf("NewStore recover: %v", err)
	}

	exists, err := recovered.UserExists(ctx, 7)
	if err != nil || !exists {
		t.Fatalf("owner lost in recovery: %v %v", exists, err)
	}
	got, err := recovered.FindByNumber(ctx, "1111111111")
	if err != nil {
		t.Fatalf("FindByNumber after recovery: %v", err)
	}
	if got.Balance.String() != "130.00" {
		t.Fatalf("recovered balance = %s, want 130.00", got.Balance)
	}
	if _, err := recovered.FindByTransactionID(ctx, record.TransactionID); err != nil {
		t.Fatalf("recovered record lookup: %v", err)
	}

	// 恢復後可以繼續寫入
	got.Balance = mustMoney(t, "150.00")
	next := domain.NewDepositRecord(domain.NewTransactionID(), "1111111111", mustMoney(t, "20.00"))
	if err := recovered.CommitMutation(ctx, []*domain.Account{got}, next); err != nil {
		t.Fatalf("CommitMutation after recovery: %v", err)
	}
}

func TestStoreListByAccount(t *testing.T) {
	store, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	a := newAccount(t, "1111111111", "100.00")
	b := newAccount(t, "2222222222", "100.00")
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 三筆涉及 a、一筆只涉及 b
	for i := 0; i < 2; i++ {
		record := domain.NewDepositRecord(domain.NewTransactionID(), "1111111111", mustMoney(t, "1.00"))
		if err := store.CommitMutation(ctx, []*domain.Account{a}, record); err != nil {
			t.Fatalf("CommitMutation: %v", err)
		}
	}
	transfer := domain.NewTransferRecord(domain.NewTransactionID(), "1111111111", "2222222222", mustMoney(t, "5.00"), "")
	if err := store.CommitMutation(ctx, []*domain.Account{a, b}, transfer); err != nil {
		t.Fatalf("CommitMutation: %v", err)
	}
	solo := domain.NewDepositRecord(domain.NewTransactionID(), "2222222222", mustMoney(t, "9.00"))
	if err := store.CommitMutation(ctx, []*domain.Account{b}, solo); err != nil {
		t.Fatalf("CommitMutation: %v", err)
	}

	page, err := store.ListByAccount(ctx, "1111111111", usecase.PageRequest{})
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(page.Items))
	}
	// 新到舊：第一筆是那筆轉帳
	if page.Items[0].TransactionID != transfer.TransactionID {
		t.Fatalf("first item = %s, want the transfer", page.Items[0].TransactionID)
	}

	if _, err := store.ListByAccount(ctx, "1111111111", usecase.PageRequest{Token: "bogus"}); domain.KindOf(err) != domain.KindInvalidFieldValue {
		t.Fatalf("kind = %v, want InvalidFieldValue", domain.KindOf(err))
	}
}

// 頁標記錨定在最後一筆的代理鍵上：兩頁之間落地的新紀錄不會讓續讀重複或跳頁
func TestStoreListByAccountStableAcrossAppends(t *testing.T) {
	store, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	account := newAccount(t, "1111111111", "0.00")
	if err := store.Create(ctx, account); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var ids []string
	for i := 0; i < 5; i++ {
		record := domain.NewDepositRecord(domain.NewTransactionID(), "1111111111", mustMoney(t, "1.00"))
		account.Balance = account.Balance.Add(mustMoney(t, "1.00"))
		if err := store.CommitMutation(ctx, []*domain.Account{account}, record); err != nil {
			t.Fatalf("CommitMutation #%d: %v", i, err)
		}
		ids = append(ids, record.TransactionID)
	}

	first, err := store.ListByAccount(ctx, "1111111111", usecase.PageRequest{Limit: 2})
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(first.Items) != 2 || first.NextToken == "" {
		t.Fatalf("page 1: %d items, token %q", len(first.Items), first.NextToken)
	}

	// 取得第一頁後又落地一筆新紀錄
	late := domain.NewDepositRecord(domain.NewTransactionID(), "1111111111", mustMoney(t, "1.00"))
	account.Balance = account.Balance.Add(mustMoney(t, "1.00"))
	if err := store.CommitMutation(ctx, []*domain.Account{account}, late); err != nil {
		t.Fatalf("CommitMutation(late): %v", err)
	}

	seen := map[string]bool{first.Items[0].TransactionID: true, first.Items[1].TransactionID: true}
	token := first.NextToken
	for token != "" {
		page, err := store.ListByAccount(ctx, "1111111111", usecase.PageRequest{Limit: 2, Token: token})
		if err != nil {
			t.Fatalf("ListByAccount(token=%q): %v", token, err)
		}
		for _, record := range page.Items {
			if seen[record.TransactionID] {
				t.Fatalf("duplicate record across pages: %s", record.TransactionID)
			}
			if record.TransactionID == late.TransactionID {
				t.Fatalf("continuation jumped forward to the late record")
			}
			seen[record.TransactionID] = true
		}
		token = page.NextToken
	}
	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("record %s lost between pages", id)
		}
	}
}
