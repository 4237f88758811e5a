// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сканера.
// Пропуск поста и исчерпанная квота ошибками НЕ являются: резолвер
// возвращает причину пропуска, квота — false. Здесь только то, что
// сервисы действительно поднимают вызывающему.
package common

import "errors"

var (
	// ErrAccountNotFound — аккаунт не найден в базе
	ErrAccountNotFound = errors.New("аккаунт не найден")
	// ErrInvalidMultiplier — множитель должен быть положительным
	ErrInvalidMultiplier = errors.New("множитель должен быть > 0")
	// ErrInvalidQuota — квота должна быть положительной
	ErrInvalidQuota = errors.New("квота должна быть > 0")
)
