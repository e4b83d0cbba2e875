package model

import "time"

// Report bundles everything the spreadsheet export renders.
type Report struct {
	GeneratedAt time.Time
	Summary     PortfolioSummary
	Trades      []TradeRecord
	History     []HistoryRecord
}

// ReportFile is a generated report ready for delivery: either the raw bytes
// for a direct document upload or a download link when the file was pushed
// to cloud storage instead.
type ReportFile struct {
	FileName string
	Data     []byte
	Link     string
}
