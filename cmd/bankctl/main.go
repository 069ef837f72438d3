// bankctl 是帳本核心的操作工具
// 依設定組裝儲存後端（mysql 或 memory+WAL），再把子命令轉成對帳本服務的呼叫
//
// 用法:
//
//	bankctl [-config path] [-actor name] <command> [flags]
//
// 子命令: migrate, add-owner, open, get, close, update,
// deposit, withdraw, transfer, history, tx
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	memory_adapter "github.com/KareemAzab21/BankSystem/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/KareemAzab21/BankSystem/internal/app/core/adapter/out/mysql"
	"github.com/KareemAzab21/BankSystem/internal/app/core/usecase"
	"github.com/KareemAzab21/BankSystem/pkg/logging"
	"github.com/KareemAzab21/BankSystem/pkg/mysql"
	"github.com/KareemAzab21/BankSystem/pkg/wal"
)

// Config 應用程式設定
type Config struct {
	// Backend 儲存後端: "memory" 或 "mysql"
	Backend string       `yaml:"backend"`
	MySQL   mysql.Config `yaml:"mysql"`
	// WALPath memory 後端的日誌檔路徑，空字串代表不持久化
	WALPath string `yaml:"wal_path"`
	// LockWait 帳號鎖的等待上限，接受 "3s" 這類字串
	LockWait mysql.Duration `yaml:"lock_wait"`
	Logging  logging.Config `yaml:"logging"`
}

func main() {
	args := os.Args[1:]
	configPath := "config/config.yaml"
	actor := "bankctl"

	// 全域旗標放在子命令前面
	for len(args) >= 2 {
		if args[0] == "-config" {
			configPath = args[1]
			args = args[2:]
			continue
		}
		if args[0] == "-actor" {
			actor = args[1]
			args = args[2:]
			continue
		}
		break
	}
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg := loadConfig(configPath)
	logger := logging.New(cfg.Logging)

	ctx := context.Background()
	command := args[0]
	args = args[1:]

	switch cfg.Backend {
	case "mysql":
		client, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			log.Fatalf("failed to connect to mysql: %v", err)
		}
		defer client.Close()

		store := mysql_adapter.NewStore(client.DB())
		if command == "migrate" {
			if err := store.AutoMigrate(); err != nil {
				log.Fatalf("migration failed: %v", err)
			}
			fmt.Println("migration complete")
			return
		}
		if command == "add-owner" {
			id, name := ownerArgs(args)
			if err := store.EnsureOwner(ctx, id, name); err != nil {
				log.Fatalf("add-owner failed: %v", err)
			}
			fmt.Printf("owner %d registered\n", id)
			return
		}
		run(ctx, newService(store, cfg, logger), actor, command, args)

	case "memory", "":
		var journal *wal.WAL
		if cfg.WALPath != "" {
			var err error
			journal, err = wal.New(cfg.WALPath)
			if err != nil {
				log.Fatalf("failed to open wal: %v", err)
			}
			defer journal.Close()
		}
		store, err := memory_adapter.NewStore(journal)
		if err != nil {
			log.Fatalf("failed to init memory store: %v", err)
		}
		if command == "migrate" {
			fmt.Println("memory backend needs no migration")
			return
		}
		if command == "add-owner" {
			id, _ := ownerArgs(args)
			if err := store.RegisterOwner(id); err != nil {
				log.Fatalf("add-owner failed: %v", err)
			}
			fmt.Printf("owner %d registered\n", id)
			return
		}
		run(ctx, newService(store, cfg, logger), actor, command, args)

	default:
		log.Fatalf("unknown backend: %s", cfg.Backend)
	}
}

func newService(store usecase.LedgerStore, cfg Config, logger *slog.Logger) *usecase.Service {
	engine := usecase.NewEngine(store, time.Duration(cfg.LockWait))
	return usecase.NewService(store, engine, logger)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: bankctl [-config path] [-actor name] <command> [args]

commands:
  migrate                                        建立資料表 (mysql)
  add-owner <owner-id> [username]                註冊擁有者
  open <owner-id> <type> [initial-balance]       開戶
  get <account-number-or-id>                     查詢帳戶
  close <account-id>                             關閉帳戶
  update <account-id> [type] [status]            更新帳戶中繼資料
  deposit <account-number> <amount>              存款
  withdraw <account-number> <amount>             提款
  transfer <from> <to> <amount> [description]    轉帳
  history <account-number> [page-token]          交易紀錄
  tx <transaction-id>                            查詢交易`)
}

func loadConfig(path string) Config {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		// 沒有設定檔時退回純記憶體後端，方便本機試用
		log.Printf("config %s not found, using memory backend", path)
		cfg.Backend = "memory"
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	// 補全預設值（yaml 沒寫的欄位）
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.LockWait == 0 {
		cfg.LockWait = mysql.Duration(usecase.DefaultLockWait)
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = mysql.Duration(30 * time.Minute)
	}
	return cfg
}

func ownerArgs(args []string) (int64, string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	var id int64
	if _, err := fmt.Sscan(args[0], &id); err != nil {
		log.Fatalf("owner id must be an integer: %s", args[0])
	}
	name := "owner-" + args[0]
	if len(args) > 1 {
		name = args[1]
	}
	return id, name
}

func run(ctx context.Context, service *usecase.Service, actor, command string, args []string) {
	switch command {
	case "open":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		var ownerID int64
		if _, err := fmt.Sscan(args[0], &ownerID); err != nil {
			log.Fatalf("owner id must be an integer: %s", args[0])
		}
		initial := ""
		if len(args) > 2 {
			initial = args[2]
		}
		account, err := service.OpenAccount(ctx, actor, usecase.OpenAccountCommand{
			OwnerID:        ownerID,
			Type:           args[1],
			InitialBalance: initial,
		})
		exitOn(err)
		emit(account)

	case "get":
		if len(args) < 1 {
			usage()
			os.Exit(2)
		}
		account, err := service.GetAccount(ctx, args[0])
		exitOn(err)
		emit(account)

	case "close":
		if len(args) < 1 {
			usage()
			os.Exit(2)
		}
		var id int64
		if _, err := fmt.Sscan(args[0], &id); err != nil {
			log.Fatalf("account id must be an integer: %s", args[0])
		}
		exitOn(service.CloseAccount(ctx, actor, id))
		fmt.Println("account closed")

	case "update":
		if len(args) < 1 {
			usage()
			os.Exit(2)
		}
		var id int64
		if _, err := fmt.Sscan(args[0], &id); err != nil {
			log.Fatalf("account id must be an integer: %s", args[0])
		}
		cmd := usecase.UpdateAccountCommand{}
		if len(args) > 1 {
			cmd.Type = args[1]
		}
		if len(args) > 2 {
			cmd.Status = args[2]
		}
		account, err := service.UpdateAccount(ctx, actor, id, cmd)
		exitOn(err)
		emit(account)

	case "deposit":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		account, err := service.Deposit(ctx, actor, args[0], args[1])
		exitOn(err)
		emit(account)

	case "withdraw":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		account, err := service.Withdraw(ctx, actor, args[0], args[1])
		exitOn(err)
		emit(account)

	case "transfer":
		if len(args) < 3 {
			usage()
			os.Exit(2)
		}
		description := ""
		if len(args) > 3 {
			description = args[3]
		}
		result, err := service.Transfer(ctx, actor, usecase.TransferRequest{
			SourceNumber:      args[0],
			DestinationNumber: args[1],
			Amount:            args[2],
			Description:       description,
		})
		exitOn(err)
		emit(result)

	case "history":
		if len(args) < 1 {
			usage()
			os.Exit(2)
		}
		token := ""
		if len(args) > 1 {
			token = args[1]
		}
		page, err := service.ListTransactions(ctx, args[0], usecase.PageRequest{Token: token})
		exitOn(err)
		emit(page)

	case "tx":
		if len(args) < 1 {
			usage()
			os.Exit(2)
		}
		record, err := service.GetTransaction(ctx, args[0])
		exitOn(err)
		emit(record)

	default:
		usage()
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func emit(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
	fmt.Println(string(out))
}
