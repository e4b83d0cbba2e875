package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			now := time.Now()

			rqID := uuid.NewString()
			c.Set("rqID", rqID)

			var chatID int64
			if c.Chat() != nil {
				chatID = c.Chat().ID
			}

			slog.Info(
				"start request",
				slog.String("rqID", rqID),
				slog.Int64("chatID", chatID),
			)

			defer func() {
				slog.Info(
					"request finished",
					slog.String("rqID", rqID),
					slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
				)
			}()

			return next(c)
		}
	}
}

// AllowChat drops updates from anyone but the portfolio owner. The ledger
// holds a single portfolio, so there is nothing to show other chats.
func AllowChat(allowedChatID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if allowedChatID == 0 {
				return next(c)
			}

			var chatID int64
			if c.Chat() != nil {
				chatID = c.Chat().ID
			}
			if chatID != allowedChatID {
				slog.Warn("update from unknown chat ignored", slog.Int64("chatID", chatID))
				return nil
			}
			return next(c)
		}
	}
}
