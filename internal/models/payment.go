package models

import "time"

// ReceiptStatus описывает состояние платёжной квитанции.
type ReceiptStatus string

// Состояния квитанции. Одобрение квитанции переводит связанный
// абонемент из PENDING в ACTIVE.
const (
	ReceiptPending  ReceiptStatus = "PENDING"
	ReceiptApproved ReceiptStatus = "APPROVED"
	ReceiptRejected ReceiptStatus = "REJECTED"
)

// PaymentReceipt представляет квитанцию об оплате одного абонемента.
// Корректность обработки платежа внешним провайдером вне зоны
// ответственности сервиса, квитанции одобряются администратором вручную.
type PaymentReceipt struct {
	ID             int64         // Идентификатор квитанции
	SubscriptionID int64         // Абонемент
	Amount         float64       // Сумма
	Status         ReceiptStatus // Состояние
	ProcessedAt    *time.Time    // Момент обработки
	ProcessedBy    *string       // Кто обработал
	AdminNotes     string        // Примечания
	CreatedAt      time.Time     // Момент создания
}
