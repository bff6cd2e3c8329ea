package metrics

import "expvar"

// 进程级计数器，经 /debug/vars 暴露。
var (
	FeedReconnects  = expvar.NewInt("feed_reconnects")
	FeedSilenceTrips = expvar.NewInt("feed_silence_trips")
	SoftResets      = expvar.NewInt("open_soft_resets")
	GuardTrips      = expvar.NewInt("early_guard_trips")
	OrdersPlaced    = expvar.NewInt("orders_placed")
	OrdersFailed    = expvar.NewInt("orders_failed")
	BalanceBackoffs = expvar.NewInt("balance_backoffs")
	WindowsSettled  = expvar.NewInt("windows_settled")
	SettleWins      = expvar.NewInt("settle_wins")
	SettleLosses    = expvar.NewInt("settle_losses")
)
