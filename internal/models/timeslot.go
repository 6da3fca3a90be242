package models

import "time"

// TimeSlot задаёт именованное дневное окно, в которое владелец абонемента
// некастомного плана может пройти внутрь. Применяется только ко входу,
// выход по слотам не ограничивается.
type TimeSlot string

// Дневные окна доступа. ALL и отсутствие слота означают "весь день".
const (
	SlotMorning   TimeSlot = "MORNING"
	SlotAfternoon TimeSlot = "AFTERNOON"
	SlotNight     TimeSlot = "NIGHT"
	SlotAll       TimeSlot = "ALL"
)

// Valid проверяет, что слот входит в закрытый список.
func (s TimeSlot) Valid() bool {
	switch s {
	case SlotMorning, SlotAfternoon, SlotNight, SlotAll:
		return true
	}
	return false
}

// Contains сообщает, попадает ли местное время t в окно слота.
// MORNING — 08:00–12:00, AFTERNOON — 12:00–17:00, NIGHT — с 17:00 до конца суток.
func (s TimeSlot) Contains(t time.Time) bool {
	h := t.Hour()
	switch s {
	case SlotMorning:
		return h >= 8 && h < 12
	case SlotAfternoon:
		return h >= 12 && h < 17
	case SlotNight:
		return h >= 17
	case SlotAll:
		return true
	}
	return true
}
