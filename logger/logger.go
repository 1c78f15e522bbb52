package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the application logger. The log file rotates so the upload
// pipeline can log every retry without growing without bound.
type Config struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	Path       string `env:"LOG_PATH" envDefault:"./logs"`
	File       string `env:"LOG_FILE" envDefault:"app.log"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE" envDefault:"10"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	ToStdout   bool   `env:"LOG_STDOUT" envDefault:"true"`
}

// New builds a logrus logger writing to a rotating file under cfg.Path, and
// optionally to stdout as well. Callers receive the logger as a dependency;
// there is no package-global instance.
func New(cfg Config) (*logrus.Logger, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, cfg.File),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}

	var out io.Writer = rotating
	if cfg.ToStdout {
		out = io.MultiWriter(os.Stdout, rotating)
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return log, nil
}
