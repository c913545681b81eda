package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DreamCats/equipid/internal/config"
)

// LogLevelEnv 覆盖配置文件中的 log.level。
const LogLevelEnv = "EQUIPID_LOG_LEVEL"

var logLevel = new(slog.LevelVar)

// SetupLogging 根据子命令初始化全局 slog 日志：同时写入 stderr 与 log.dir 下的日志文件。
// 返回关闭日志文件的函数；日志文件创建失败时仅输出到 stderr 并返回 error。
func SetupLogging(subcommand string, cfg config.LogConfig) (func(), error) {
	logLevel.Set(ParseLevel(cfg.Level))
	if lvl := os.Getenv(LogLevelEnv); lvl != "" {
		logLevel.Set(ParseLevel(lvl))
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	var setupErr error

	if cfg.Dir != "" {
		logFile, logPath, err := openLogFile(subcommand, cfg.Dir)
		if err != nil {
			setupErr = err
		} else {
			out = io.MultiWriter(os.Stderr, logFile)
			closeFn = func() { _ = logFile.Close() }
			defer slog.Info("log file", "path", logPath)
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
	return closeFn, setupErr
}

// ParseLevel 将 debug/info/warn/error（大小写不敏感）转换为 slog.Level，未知值按 info 处理。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(subcommand, dir string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", err
	}
	timestamp := time.Now().Format("20060102-150405")
	logPath := filepath.Join(dir, fmt.Sprintf("equipid-%s-%s.log", subcommand, timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", err
	}
	return logFile, logPath, nil
}
