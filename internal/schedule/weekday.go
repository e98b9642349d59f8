package schedule

import (
	"strings"
	"time"
)

var weekdayLabels = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,

	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
}

var accents = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")

// ParseWeekday resolves an English or Spanish weekday label.  Matching is
// case-insensitive and ignores Spanish accents ("Miércoles", "sábado").
func ParseWeekday(label string) (time.Weekday, bool) {
	key := accents.Replace(strings.ToLower(strings.TrimSpace(label)))
	wd, ok := weekdayLabels[key]
	return wd, ok
}
