package service

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrPriceOutOfRange       = errors.New("price outside today's range")
	ErrInsufficientFunds     = errors.New("insufficient cash")
	ErrUnknownTicker         = errors.New("ticker not held in portfolio")
	ErrOversell              = errors.New("not enough shares to sell")

	ErrNotInitialized     = errors.New("portfolio not initialized")
	ErrAlreadyInitialized = errors.New("portfolio already initialized")
	ErrAlreadyWatched     = errors.New("ticker already on watchlist")
	ErrNotWatched         = errors.New("ticker not on watchlist")
	ErrNotFound           = errors.New("not found")
)
