// Package daykey формирует строковые ключи календарных дней.
// Все суточные счётчики движка (активность, спины, дневная награда)
// сбрасываются по смене такого ключа.
package daykey

import "time"

const layout = "2006-01-02"

// Day возвращает ключ календарного дня для момента t в локальной зоне.
func Day(t time.Time) string {
	return t.Format(layout)
}

// Yesterday возвращает ключ дня, предшествующего моменту t.
func Yesterday(t time.Time) string {
	return t.AddDate(0, 0, -1).Format(layout)
}
