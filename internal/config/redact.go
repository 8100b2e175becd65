package config

import (
	"fmt"
	"strconv"
	"strings"
)

const tokenPrefixLen = 4

// FormatRedacted renders the resolved configuration for operator inspection
// with secrets masked. Safe to print to stdout or logs.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"telegram_token: " + redactToken(cfg.TelegramToken),
		"bot_owner: " + strconv.FormatInt(cfg.BotOwnerID, 10),
		"chats_file: " + cfg.ChatsFile,
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"broadcast_rate: " + strconv.FormatFloat(cfg.BroadcastRate, 'f', -1, 64),
		"broadcast_workers: " + strconv.Itoa(cfg.BroadcastWorkers),
		"auto_unregister: " + strconv.FormatBool(cfg.AutoUnregister),
	}

	return strings.Join(lines, "\n")
}

func redactToken(token string) string {
	if token == "" {
		return "(unset)"
	}
	if len(token) <= tokenPrefixLen {
		return "...redacted"
	}

	return fmt.Sprintf("%s...redacted", token[:tokenPrefixLen])
}
