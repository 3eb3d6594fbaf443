// Package model содержит доменные сущности сервиса продажи шаржа и интернет-пакетов.
package model

import "time"

// User представляет пользователя чата, известного боту.
// Счётчики изменяются только при успешном завершении заказа.
type User struct {
	ID                int64
	Username          string
	JoinedAt          time.Time
	TransactionsCount int64
	TotalSpent        int64
	LoyaltyPoints     int64
}

// PackageKind описывает вид пакета: прямой шарж (airtime) или интернет-трафик.
type PackageKind string

const (
	KindAirtime PackageKind = "airtime"
	KindData    PackageKind = "data"
)

// Package описывает продаваемый пакет из прайс-листа.
// Amount для airtime задан во внешней валюте и умножается на курс при расчёте цены,
// для data — уже в целевой валюте (в минимальных единицах).
type Package struct {
	Name        string
	Kind        PackageKind
	Amount      int64
	Description string
}

// TransactionStatus описывает статус заказа в его жизненном цикле.
type TransactionStatus string

const (
	StatusPending       TransactionStatus = "pending"
	StatusPendingReview TransactionStatus = "pending_review"
	StatusCompleted     TransactionStatus = "completed"
	StatusRejected      TransactionStatus = "rejected"
	StatusExpired       TransactionStatus = "expired"
)

// Terminal сообщает, допускает ли статус дальнейшие переходы.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Transaction описывает заказ пользователя. Amount фиксируется при создании
// (после скидки и конвертации) и далее не меняется. Заполнен не более чем один
// терминальный таймстемп, всегда согласованный со статусом.
type Transaction struct {
	ID             string
	UserID         int64
	PackageName    string
	Amount         int64
	PhoneNumber    string
	Status         TransactionStatus
	CreatedAt      time.Time
	PaymentTime    *time.Time
	CompletedAt    *time.Time
	RejectedAt     *time.Time
	ExpiredAt      *time.Time
	LastRemindedAt *time.Time
}

// TicketStatus описывает состояние тикета поддержки.
type TicketStatus string

const (
	TicketPending  TicketStatus = "pending"
	TicketAnswered TicketStatus = "answered"
)

// Ticket представляет обращение пользователя в поддержку.
type Ticket struct {
	ID        string
	UserID    int64
	Message   string
	Status    TicketStatus
	CreatedAt time.Time
}

// TicketReply представляет сообщение в переписке по тикету.
type TicketReply struct {
	ID        int64
	TicketID  string
	FromAdmin bool
	Message   string
	CreatedAt time.Time
}

// Feedback представляет оценку сервиса пользователем.
type Feedback struct {
	ID        int64
	UserID    int64
	Rating    int
	Message   string
	CreatedAt time.Time
}

// Stats содержит сводку по сервису для отчёта оператору.
type Stats struct {
	TodayTransactions int64 `json:"today_transactions"`
	TodayAmount       int64 `json:"today_amount"`
	WeekTransactions  int64 `json:"week_transactions"`
	WeekAmount        int64 `json:"week_amount"`
	TotalUsers        int64 `json:"total_users"`
	ActiveUsersToday  int64 `json:"active_users_today"`
	Completed         int64 `json:"completed"`
	PendingReview     int64 `json:"pending_review"`
	Rejected          int64 `json:"rejected"`
	TotalTickets      int64 `json:"total_tickets"`
	PendingTickets    int64 `json:"pending_tickets"`
}
