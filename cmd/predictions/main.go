package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/trade_tracker_bot/internal/externalApi/footballApi"
	"github.com/KotFed0t/trade_tracker_bot/internal/service/footballService"
	"github.com/KotFed0t/trade_tracker_bot/utils"
)

// Prints today's match predictions to stdout without starting the bot.
func main() {
	cfg := config.MustLoad()

	// keep stdout clean for the report, logs go to stderr
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(log)

	ctx := utils.CreateCtxWithNewRqID(context.Background())

	srv := footballService.New(footballApi.New(cfg), cfg)

	day := time.Now()
	predictions, err := srv.Predictions(ctx, day)
	if err != nil {
		slog.Error("predictions failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	fmt.Println(telebotConverter.PredictionsResponse(day.Format("2006-01-02"), predictions))
}
