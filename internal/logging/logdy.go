package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tour-counter-go/internal/config"
)

// logdyWriter forwards raw JSON log lines to the embedded Logdy UI
type logdyWriter struct {
	logger logdy.Logdy
}

func (w *logdyWriter) Write(p []byte) (n int, err error) {
	w.logger.LogString(string(p))
	return len(p), nil
}

// StartLogdy starts the embedded Logdy web UI and returns a writer to tee logs into, plus the UI URL
func StartLogdy(cfg *config.Config) (io.Writer, string) {
	portStr := strconv.Itoa(cfg.LogdyPort)
	ld := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: portStr,
	}, nil)

	url := fmt.Sprintf("http://%s:%s", cfg.LogdyHost, portStr)
	return &logdyWriter{logger: ld}, url
}

// Setup installs the global zerolog logger: console output on stderr, teed
// into Logdy when enabled, at the configured level
func Setup(cfg *config.Config) {
	console := zerolog.ConsoleWriter{Out: os.Stderr}

	if cfg.LogdyEnabled {
		w, url := StartLogdy(cfg)
		log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, w)).With().Timestamp().Logger()
		log.Info().Str("url", url).Msg("Logdy UI available")
	} else {
		log.Logger = log.Output(console)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
