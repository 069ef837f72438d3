package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// MoneyScale 金額精度：小數點後 2 位
// 所有跨邊界的金額都必須能以此精度「精確」表示，不做任何隱性捨入
const MoneyScale = 2

// Money 以十進位定點數表示的金額
// 絕不使用二進位浮點數，避免累積誤差
type Money struct {
	value decimal.Decimal
}

// MoneyZero 零元
var MoneyZero = Money{value: decimal.Zero}

// ParseMoney 從字串解析金額（外部輸入的唯一入口）
// 格式錯誤或超出 2 位小數精度時回傳 InvalidAmount
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, NewInvalidAmount("malformed amount: " + s)
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal 由 decimal 建構金額，檢查精度不超過 MoneyScale
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	// Truncate 不做捨入；若截斷後值改變，代表精度超出 2 位小數
	if !d.Equal(d.Truncate(MoneyScale)) {
		return Money{}, NewInvalidAmount("amount exceeds 2 decimal places: " + d.String())
	}
	return Money{value: d}, nil
}

// Decimal 回傳底層的 decimal 值（持久層轉換用）
func (m Money) Decimal() decimal.Decimal {
	return m.value
}

// Add 精確加法
func (m Money) Add(o Money) Money {
	return Money{value: m.value.Add(o.value)}
}

// Sub 精確減法
func (m Money) Sub(o Money) Money {
	return Money{value: m.value.Sub(o.value)}
}

// Cmp 比較：m < o 回傳 -1、相等回傳 0、m > o 回傳 1
func (m Money) Cmp(o Money) int {
	return m.value.Cmp(o.value)
}

// LessThan 是否小於 o
func (m Money) LessThan(o Money) bool {
	return m.value.Cmp(o.value) < 0
}

// Equal 精確相等（1.5 與 1.50 視為相等）
func (m Money) Equal(o Money) bool {
	return m.value.Equal(o.value)
}

// IsPositive 是否 > 0
func (m Money) IsPositive() bool {
	return m.value.IsPositive()
}

// IsNegative 是否 < 0
func (m Money) IsNegative() bool {
	return m.value.IsNegative()
}

// IsZero 是否 == 0
func (m Money) IsZero() bool {
	return m.value.IsZero()
}

// String 固定輸出 2 位小數，例如 "70.00"
func (m Money) String() string {
	return m.value.StringFixed(MoneyScale)
}

// MarshalJSON 以字串形式序列化，例如 "123.45"
// WAL 日誌與對外快照都走這個表示法
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 反序列化並套用與 ParseMoney 相同的精度檢查
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
