package utils

import (
	"custodia/adapters"
	"custodia/config"
	"custodia/database"
	"custodia/engine"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// logScheduler logs scheduler events with timestamp
func logScheduler(message string) {
	log.Printf("[SETTLE-SCHEDULER %s] %s", time.Now().Format(time.RFC3339), message)
}

// NewEngine wires the settlement engine against the global database,
// the adapter registry and the admin mail sink
func NewEngine(registry *adapters.Registry) *engine.Engine {
	cfg := engine.Settings{
		MovesBudget:       time.Duration(config.AppConfig.MovesBudgetMs) * time.Millisecond,
		WithdrawalsBudget: time.Duration(config.AppConfig.WithdrawalsBudgetMs) * time.Millisecond,
		AggregationBudget: time.Duration(config.AppConfig.AggregationBudgetMs) * time.Millisecond,
		BatchSize:         config.AppConfig.WithdrawBatchSize,
		AggregateMonths:   config.AppConfig.AggregateMonths,
	}

	return engine.New(database.Database.Db, registry, NotifyAdmins, cfg)
}

// InitializeSettlementSchedulers wires the engine entry points onto
// one cron instance. The engine relies on at-most-one concurrent
// invocation per task; SkipIfStillRunning drops a tick while the
// previous run of the same task is still working.
func InitializeSettlementSchedulers(eng *engine.Engine) *cron.Cron {
	logScheduler("Initializing settlement schedulers...")

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	c.AddFunc(config.AppConfig.MovesCron, func() {
		eng.RunMoves()
	})
	c.AddFunc(config.AppConfig.WithdrawalsCron, func() {
		eng.RunWithdrawals()
	})
	c.AddFunc(config.AppConfig.AggregationCron, func() {
		eng.RunAggregation()
	})
	c.AddFunc(config.AppConfig.HousekeepingCron, func() {
		eng.RunHousekeeping()
	})

	c.Start()

	logScheduler("All settlement schedulers started")
	return c
}
