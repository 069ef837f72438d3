package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KareemAzab21/BankSystem/internal/app/core/domain"
)

// DefaultLockWait 預設的鎖等待上限
// 超過即回報 Busy，不讓呼叫端無限期掛住
const DefaultLockWait = 3 * time.Second

// accountLocker 以帳號為粒度的鎖表
// 同一帳號的異動序列化，不同帳號的異動互不阻擋
// 鎖本體是容量 1 的 channel：比 sync.Mutex 多了可逾時、可取消的能力
type accountLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

func newAccountLocker(wait time.Duration) *accountLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &accountLocker{
		locks: make(map[string]chan struct{}),
		wait:  wait,
	}
}

// lockFor 取得（或建立）某帳號的鎖 channel
func (l *accountLocker) lockFor(number string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[number]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[number] = ch
	}
	return ch
}

// acquire 依「固定全序」鎖住所有指定帳號，回傳釋放函式
// 排序後再取鎖：兩筆方向相反的轉帳不會彼此等待成環（死鎖預防）
// 整體等待超過上限時，回滾已取得的鎖並回報 Busy
func (l *accountLocker) acquire(ctx context.Context, numbers ...string) (func(), error) {
	ordered := make([]string, len(numbers))
	copy(ordered, numbers)
	sort.Strings(ordered)
	// 去重：同一帳號只取一次鎖，否則第二次取鎖會自己等自己
	deduped := ordered[:0]
	for i, number := range ordered {
		if i == 0 || number != ordered[i-1] {
			deduped = append(deduped, number)
		}
	}
	ordered = deduped

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		// 反序釋放
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, number := range ordered {
		ch := l.lockFor(number)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			release()
			return nil, domain.NewBusy(number)
		case <-ctx.Done():
			release()
			return nil, domain.NewBusy(number)
		}
	}
	return release, nil
}
