// Package scheduler запускает workflow по cron-расписаниям.
//
// Расписания задаются в конфигурации (schedules[]): имя, workflow,
// 5-полевое cron-выражение или дескриптор (@hourly, @every 10m),
// timezone и inputs. Все расписания валидируются в New — сервис
// не стартует с некорректным расписанием.
//
// Структура:
//   - scheduler.go — Scheduler (Start, Stop, Trigger, Entries)
//   - cron.go      — разбор cron-выражений с учётом timezone
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules: cfg.Schedules,
//	    Executor:  engine,
//	    Metrics:   metrics,
//	    Logger:    logger,
//	})
//	sched.Start(ctx)
//	defer sched.Stop()
//
// Каждое срабатывание вызывает Executor.Execute и учитывается в
// relay_schedule_triggers_total{schedule, outcome}. Ошибка запуска
// (workflow не зарегистрирован, движок остановлен) логируется и не
// снимает расписание.
package scheduler
