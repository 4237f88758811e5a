// Package aggregate — handleset.go: типизированное множество хэндлов.
// В БД множество хранится одной текстовой колонкой через запятую, но
// сериализация/десериализация происходит только здесь, на границе
// хранилища. Инкрементальное добавление в БД делается условным SQL-
// выражением (см. repository.go), без перечитывания всего множества.
package aggregate

import (
	"sort"
	"strings"

	"serotonyl.ru/reputation-scanner/internal/common"
)

// HandleSet — множество нормализованных хэндлов.
type HandleSet map[string]struct{}

// ParseHandleSet разбирает текстовое представление "a,b,c".
// Пустая строка — пустое множество. Дубликаты и мусорные элементы
// схлопываются при разборе.
func ParseHandleSet(s string) HandleSet {
	set := make(HandleSet)
	for _, part := range strings.Split(s, ",") {
		h := common.NormalizeHandle(part)
		if h == "" {
			continue
		}
		set[h] = struct{}{}
	}
	return set
}

// Contains проверяет членство хэндла.
func (s HandleSet) Contains(handle string) bool {
	_, ok := s[common.NormalizeHandle(handle)]
	return ok
}

// Add добавляет хэндл. Возвращает false, если он уже был.
func (s HandleSet) Add(handle string) bool {
	h := common.NormalizeHandle(handle)
	if h == "" {
		return false
	}
	if _, ok := s[h]; ok {
		return false
	}
	s[h] = struct{}{}
	return true
}

// Len возвращает размер множества.
func (s HandleSet) Len() int {
	return len(s)
}

// String сериализует множество в каноническом виде: отсортированные
// хэндлы через запятую. Формат совместим с ParseHandleSet.
func (s HandleSet) String() string {
	handles := make([]string, 0, len(s))
	for h := range s {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return strings.Join(handles, ",")
}
