package models

import "time"

// ExpiryInfo содержит данные абонемента для уведомления о скором
// или уже наступившем окончании действия. Публикуется планировщиком
// в очередь уведомлений и потребляется отправителем.
type ExpiryInfo struct {
	SubscriptionID int64              `json:"subscription_id"`
	UserUID        string             `json:"user_uid"`
	PlanName       string             `json:"plan_name"`
	EndDate        time.Time          `json:"end_date"`
	GraceEndDate   *time.Time         `json:"grace_end_date,omitempty"`
	Status         SubscriptionStatus `json:"status"`
	// AccessCode нужен планировщику для сброса кеша и в уведомление
	// не попадает.
	AccessCode string `json:"-"`
}
