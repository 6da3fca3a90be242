// Package models содержит доменные структуры тарифных планов, абонементов
// и журнала проходов, а также вспомогательные типы для приёма данных
// из внешних источников (например, JSON-запросов).
package models

import "time"

// TimeUnit задаёт единицу измерения длительности тарифного плана.
type TimeUnit string

// Допустимые единицы измерения длительности.
const (
	UnitMinutes TimeUnit = "MINUTES"
	UnitHours   TimeUnit = "HOURS"
	UnitDays    TimeUnit = "DAYS"
	UnitWeek    TimeUnit = "WEEK"
	UnitMonth   TimeUnit = "MONTH"
	UnitYear    TimeUnit = "YEAR"
)

// Valid проверяет, что единица измерения входит в закрытый список.
func (u TimeUnit) Valid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays, UnitWeek, UnitMonth, UnitYear:
		return true
	}
	return false
}

// Shift прибавляет n единиц к дате начала и возвращает дату окончания.
// Минуты и часы сдвигают время суток, остальные единицы — календарную дату,
// неделя считается как 7 дней.
func (u TimeUnit) Shift(start time.Time, n int) time.Time {
	switch u {
	case UnitMinutes:
		return start.Add(time.Duration(n) * time.Minute)
	case UnitHours:
		return start.Add(time.Duration(n) * time.Hour)
	case UnitDays:
		return start.AddDate(0, 0, n)
	case UnitWeek:
		return start.AddDate(0, 0, 7*n)
	case UnitMonth:
		return start.AddDate(0, n, 0)
	case UnitYear:
		return start.AddDate(n, 0, 0)
	}
	return start
}

// PlanType определяет класс тарифного плана. От него зависит право
// на льготный период после даты окончания абонемента.
type PlanType string

// Классы тарифных планов.
const (
	PlanDaily   PlanType = "DAILY"
	PlanWeekly  PlanType = "WEEKLY"
	PlanMonthly PlanType = "MONTHLY"
)

// Plan представляет тарифный план, системный или созданный администратором.
// Для кастомных планов (IsCustom = true) вместо относительной длительности
// может быть задано явное окно действия WindowStart/WindowEnd.
type Plan struct {
	ID              int64      // Идентификатор плана
	Name            string     // Название плана
	Price           float64    // Стоимость
	TimeUnit        TimeUnit   // Единица измерения длительности
	Duration        int        // Количество единиц (строго положительное)
	PlanType        PlanType   // Класс плана
	DefaultTimeSlot *TimeSlot  // Слот по умолчанию (nil — не задан)
	MaxCapacity     *int       // Предел одновременных посетителей (nil — без ограничения)
	CurrentCapacity int        // Текущее количество посетителей внутри
	IsCustom        bool       // Создан администратором
	WindowStart     *time.Time // Начало явного окна действия (только кастомные планы)
	WindowEnd       *time.Time // Конец явного окна действия (только кастомные планы)
	IsActive        bool       // Флаг мягкого удаления
	Notes           string     // Примечания администратора
}

// HasExplicitWindow сообщает, действует ли план по явному окну дат,
// минуя статус абонемента и слоты времени суток.
func (p *Plan) HasExplicitWindow() bool {
	return p.IsCustom && p.WindowStart != nil && p.WindowEnd != nil
}

// DummyPlan используется для приёма данных нового плана из JSON-запроса,
// прежде чем конвертировать их в Plan. Даты приходят строками.
type DummyPlan struct {
	Name            string  `json:"name" validate:"required"`                                 // Название плана
	Price           float64 `json:"price" validate:"gte=0"`                                   // Стоимость (неотрицательная)
	TimeUnit        string  `json:"time_unit" validate:"required"`                            // Единица длительности
	Duration        int     `json:"duration" validate:"required,gt=0"`                        // Количество единиц (>0)
	PlanType        string  `json:"plan_type" validate:"required,oneof=DAILY WEEKLY MONTHLY"` // Класс плана
	DefaultTimeSlot string  `json:"default_time_slot,omitempty" validate:"omitempty"`         // Слот по умолчанию
	MaxCapacity     *int    `json:"max_capacity,omitempty" validate:"omitempty,gt=0"`         // Предел посетителей
	WindowStart     string  `json:"window_start,omitempty" validate:"omitempty"`              // Начало окна, RFC3339
	WindowEnd       string  `json:"window_end,omitempty" validate:"omitempty"`                // Конец окна, RFC3339
	Notes           string  `json:"notes,omitempty"`                                          // Примечания
}

// DummyPlanPatch используется для частичного обновления плана.
// Нулевые указатели означают "поле не менять".
type DummyPlanPatch struct {
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	MaxCapacity *int     `json:"max_capacity,omitempty" validate:"omitempty,gt=0"`
	IsActive    *bool    `json:"is_active,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}
