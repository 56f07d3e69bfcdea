package scheduler

import "errors"

var (
	// ErrInvalidSchedule — некорректное расписание (cron, timezone, поля).
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrScheduleNotFound — расписание с таким именем не зарегистрировано.
	ErrScheduleNotFound = errors.New("schedule not found")
)
