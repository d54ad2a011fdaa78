package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init 按运行环境配置全局 zerolog：dev 输出彩色控制台日志，其余输出 JSON。
func Init(env string) {
	InitWriter(env, os.Stdout)
}

func InitWriter(env string, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	switch env {
	case "dev":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(cw).With().Timestamp().Logger()
	case "test":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(out).With().Timestamp().Str("service", "stackit").Logger()
	}
}

// Component 返回带 component 字段的子 logger。
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
