package models

import "time"

// Action описывает направление прохода через терминал.
type Action string

// Направления прохода.
const (
	ActionEntry Action = "ENTRY"
	ActionExit  Action = "EXIT"
)

// ValidationResult описывает итог проверки скана. Любой итог, кроме
// SUCCESS, — это бизнес-решение об отказе, а не ошибка.
type ValidationResult string

// Итоги проверки скана.
const (
	ResultSuccess      ValidationResult = "SUCCESS"
	ResultDenied       ValidationResult = "DENIED"
	ResultExpired      ValidationResult = "EXPIRED"
	ResultInvalidTime  ValidationResult = "INVALID_TIME"
	ResultCapacityFull ValidationResult = "CAPACITY_FULL"
)

// AccessLog представляет одну попытку прохода. Журнал append-only и служит
// источником истины о том, кто сейчас внутри: пользователь считается
// внутри, если его последняя запись с итогом SUCCESS имеет действие ENTRY.
type AccessLog struct {
	ID              int64            // Идентификатор записи
	UserUID         string           // Пользователь
	SubscriptionID  int64            // Абонемент
	Action          Action           // Направление прохода
	Result          ValidationResult // Итог проверки
	ScannerLocation string           // Расположение терминала
	CreatedAt       time.Time        // Момент скана
}

// DummyValidate используется для приёма запроса терминала на проверку скана.
type DummyValidate struct {
	Token           string `json:"token" validate:"required"`                      // Код доступа или QR-токен
	Action          string `json:"action" validate:"required,oneof=ENTRY EXIT"`    // Направление прохода
	ScannerLocation string `json:"scanner_location,omitempty"`                     // Расположение терминала
}
