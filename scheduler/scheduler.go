// Package scheduler — фоновые задачи обслуживания подписок и платежей.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"botfactory/database/queries"
	"botfactory/logging"
)

const jobTimeout = 30 * time.Second

// Start регистрирует задачи и запускает планировщик. Возвращённый
// Scheduler нужно останавливать через Shutdown при завершении сервиса.
func Start(users *queries.Users, payments *queries.Payments) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Ежечасно снимаем на free тех, у кого истекла платная подписка.
	_, err = s.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			n, err := users.DowngradeExpired(ctx)
			if err != nil {
				logging.API.Error("scheduler: снятие просроченных подписок не удалось", zap.Error(err))
				return
			}
			if n > 0 {
				logging.API.Info("scheduler: подписки переведены на free", zap.Int64("count", n))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Первого числа каждого месяца обнуляем месячные счётчики сообщений.
	_, err = s.NewJob(
		gocron.MonthlyJob(1, gocron.NewDaysOfTheMonth(1),
			gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			n, err := users.ResetMonthlyCounters(ctx)
			if err != nil {
				logging.API.Error("scheduler: сброс месячных счётчиков не удался", zap.Error(err))
				return
			}
			logging.API.Info("scheduler: месячные счётчики сброшены", zap.Int64("count", n))
		}),
	)
	if err != nil {
		return nil, err
	}

	// Каждые 10 минут закрываем просроченные неоплаченные счета.
	_, err = s.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			n, err := payments.ExpirePending(ctx)
			if err != nil {
				logging.Payment.Error("scheduler: закрытие просроченных счетов не удалось", zap.Error(err))
				return
			}
			if n > 0 {
				logging.Payment.Info("scheduler: просроченные счета закрыты", zap.Int64("count", n))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}
