package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер 5-полевых cron-выражений и дескрипторов (@daily, @every 1h).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron разбирает cron-выражение в timezone tz.
// Пустой tz — UTC.
func ParseCron(expr, tz string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty cron expression", ErrInvalidSchedule)
	}

	loc := time.UTC
	if tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, tz, err)
		}
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: cron expression %q: %v", ErrInvalidSchedule, expr, err)
	}

	// SpecSchedule считает время в своей Location; ConstantDelaySchedule от timezone не зависит
	if spec, ok := schedule.(*cron.SpecSchedule); ok {
		spec.Location = loc
	}
	return schedule, nil
}

// ValidateCronExpr проверяет валидность cron-выражения и timezone.
func ValidateCronExpr(expr, tz string) error {
	_, err := ParseCron(expr, tz)
	return err
}

// NextRun вычисляет следующее время срабатывания после from (в UTC).
func NextRun(expr, tz string, from time.Time) (time.Time, error) {
	schedule, err := ParseCron(expr, tz)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from).UTC(), nil
}
