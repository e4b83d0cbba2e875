package tgCallback

// Callback button unique names. Buttons carrying a payload (a ticker) pass
// it as the callback data.
const (
	RefreshPortfolio string = "refresh_portfolio"
	Buy              string = "buy"
	Sell             string = "sell"
	AddCash          string = "add_cash"
	ShowWatchlist    string = "show_watchlist"
	WatchTicker      string = "watch_ticker"
	ExportReport     string = "export_report"
	CancelFlow       string = "cancel_flow"
	SkipStopLoss     string = "skip_stop_loss"
	Unwatch          string = "unwatch"     // data: ticker
	SellTicker       string = "sell_ticker" // data: ticker
)
