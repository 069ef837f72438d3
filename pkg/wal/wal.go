// Package wal 提供僅追加的 JSON 日誌檔
// 帳本用它在套用異動前先落地一筆紀錄，重啟時重放以重建狀態
package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileModeReadOnly rw-r--r--（擁有者讀寫，其他人唯讀）
const FileModeReadOnly fs.FileMode = 0644

// WAL 僅追加的日誌檔
// 每筆紀錄是一行 JSON；Append 寫入後立即 fsync，成功回傳即代表已持久化
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// New 開啟或建立 WAL 檔案
// O_APPEND 讓每次寫入自動落在檔尾；O_CREATE 在檔案不存在時建立
func New(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Append 追加一筆紀錄並刷入硬碟
func (w *WAL) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// ReadAll 從頭逐筆讀取，透過 callback 交給呼叫端
// 逐筆解碼，不把整個檔案載入記憶體
func (w *WAL) ReadAll(callback func(raw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}

	// 讀完把位移移回檔尾，之後的 Append 走 O_APPEND 本來就安全，
	// 但 decoder 可能多讀了緩衝，這裡明確歸位
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}
