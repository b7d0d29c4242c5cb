package tool

import "time"

const (
	// StampLayout формат отметки времени в именах файлов снимков
	StampLayout = "20060102150405"
	// ReportLayout формат отметки времени в именах файлов отчётов
	ReportLayout = "20060102_150405"
	// DirLayout формат имени поддиректории с дневными снимками
	DirLayout = "2006.01.02"
)

// RoundToDate округляет дату в t до круглого дня
func RoundToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay t1 и t2 относятся к одному календарному дню
func SameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
