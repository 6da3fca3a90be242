// Package errs определяет сигнальные ошибки бизнес-слоя. Сервисы
// возвращают их обёрнутыми через fmt.Errorf("%s: %w", op, err),
// а граничный слой сопоставляет им HTTP-статусы.
package errs

import "errors"

var (
	// ErrNotFound — план, абонемент или код не найдены.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — попытка изменить системный (не кастомный) план.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict — у пользователя уже есть незакрытый абонемент.
	ErrConflict = errors.New("conflict")
	// ErrStateViolation — операция недопустима в текущем состоянии,
	// например продление абонемента в состоянии PENDING.
	ErrStateViolation = errors.New("state violation")
	// ErrValidation — некорректные входные данные, отклонённые
	// до обращения к хранилищу.
	ErrValidation = errors.New("validation failed")
	// ErrAccessCodeTaken — коллизия кода доступа с существующим
	// абонементом. Сервис повторяет генерацию, наружу не выходит.
	ErrAccessCodeTaken = errors.New("access code already taken")
)
