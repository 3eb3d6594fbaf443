// Package pricing реализует расчёт итоговой цены пакета с учётом курса и скидки.
package pricing

import (
	"fmt"
	"sync"

	"github.com/mmeshcher/airtime-desk/internal/model"
)

// Rate хранит курс конвертации для airtime-пакетов.
// Курс изменяется оператором в рантайме; чтение всегда видит последнее значение.
type Rate struct {
	mu    sync.RWMutex
	value int64
}

// NewRate создаёт хранилище курса с начальным значением.
func NewRate(initial int64) *Rate {
	return &Rate{value: initial}
}

// Get возвращает текущий курс.
func (r *Rate) Get() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set устанавливает новый курс. Неположительный курс отклоняется.
func (r *Rate) Set(v int64) error {
	if v <= 0 {
		return fmt.Errorf("conversion rate must be positive, got %d", v)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
	return nil
}

// Policy описывает параметры программы лояльности.
type Policy struct {
	DiscountThreshold int64
	DiscountPercent   int64
}

// Quote возвращает итоговую цену пакета и метку применённой скидки.
// Функция чистая относительно своих аргументов: одинаковые входы всегда
// дают одинаковый результат.
func (p Policy) Quote(pkg model.Package, rate int64, completedCount int64) (int64, string) {
	amount := pkg.Amount
	if pkg.Kind == model.KindAirtime {
		amount *= rate
	}

	if completedCount >= p.DiscountThreshold {
		discount := amount * p.DiscountPercent / 100
		return amount - discount, fmt.Sprintf("%d%% loyalty discount", p.DiscountPercent)
	}

	return amount, ""
}
