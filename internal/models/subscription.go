package models

import "time"

// SubscriptionStatus описывает состояние абонемента в жизненном цикле.
type SubscriptionStatus string

// Состояния жизненного цикла абонемента. EXPIRED — терминальное,
// обратные переходы запрещены.
const (
	StatusPending       SubscriptionStatus = "PENDING"
	StatusActive        SubscriptionStatus = "ACTIVE"
	StatusInGracePeriod SubscriptionStatus = "IN_GRACE_PERIOD"
	StatusExpired       SubscriptionStatus = "EXPIRED"
)

// GraceDays — длительность льготного периода в днях для планов класса
// MONTHLY. Единственный источник истины для этой константы.
const GraceDays = 7

// Subscription представляет абонемент пользователя на один тарифный план.
// Привязки к пользователю и плану, код доступа и даты неизменяемы после
// создания; QR-токен генерируется лениво и после генерации тоже неизменяем.
type Subscription struct {
	ID           int64              // Идентификатор абонемента
	UserUID      string             // Идентификатор владельца
	PlanID       int64              // Идентификатор тарифного плана
	AccessCode   string             // Шестизначный код доступа, глобально уникальный
	QRToken      *string            // Непрозрачный токен для сканера (nil — ещё не выдан)
	TimeSlot     *TimeSlot          // Слот времени суток (nil — весь день)
	StartDate    time.Time          // Дата начала действия
	EndDate      time.Time          // Дата окончания действия
	GraceEndDate *time.Time         // Конец льготного периода (только планы MONTHLY)
	Status       SubscriptionStatus // Текущее состояние
	ApprovedAt   *time.Time         // Момент активации
	ApprovedBy   *string            // Кто активировал
	AdminNotes   string             // Примечания администратора
	CreatedAt    time.Time          // Момент создания записи
}

// IsOpen сообщает, занимает ли абонемент "живой" слот пользователя:
// у одного пользователя может быть не более одного абонемента
// в состояниях PENDING, ACTIVE или IN_GRACE_PERIOD.
func (s *Subscription) IsOpen() bool {
	switch s.Status {
	case StatusPending, StatusActive, StatusInGracePeriod:
		return true
	}
	return false
}

// EffectiveEnd возвращает момент, после которого абонемент недействителен:
// конец льготного периода, если он задан, иначе дату окончания.
func (s *Subscription) EffectiveEnd() time.Time {
	if s.GraceEndDate != nil {
		return *s.GraceEndDate
	}
	return s.EndDate
}

// DummySubscription используется для приёма данных нового абонемента
// из JSON-запроса. Дата начала приходит строкой в формате 2006-01-02.
type DummySubscription struct {
	UserUID       string `json:"user_uid" validate:"required,uuid"`                                      // Владелец абонемента
	PlanID        int64  `json:"plan_id" validate:"required,gt=0"`                                       // Тарифный план
	TimeSlot      string `json:"time_slot,omitempty" validate:"omitempty,oneof=MORNING AFTERNOON NIGHT ALL"` // Слот времени суток
	StartDate     string `json:"start_date" validate:"required"`                                         // Дата начала в формате 2006-01-02
	PaymentMethod string `json:"payment_method,omitempty"`                                               // Способ оплаты (справочно)
	AdminNotes    string `json:"admin_notes,omitempty"`                                                  // Примечания
}
