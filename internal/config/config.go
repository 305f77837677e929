package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Options are the raw settings gathered from flags and the environment.
type Options struct {
	ServerAddr     string
	AllowedOrigins []string
	RoomTTL        time.Duration
	ReapInterval   time.Duration
	UploadDir      string
	MediaURL       string
	LogLevel       string
	LogFormat      string
}

type Config struct {
	ServerAddr     string
	AllowedOrigins []string
	RoomTTL        time.Duration
	ReapInterval   time.Duration
	UploadDir      string
	MediaURL       string
	LogLevel       logrus.Level
	LogFormat      string
}

func NewConfig(opts Options) (*Config, error) {
	if opts.ServerAddr == "" {
		return nil, errors.New("server address cannot be empty")
	}
	if opts.RoomTTL <= 0 {
		return nil, fmt.Errorf("room ttl must be positive, got %s", opts.RoomTTL)
	}
	if opts.ReapInterval <= 0 {
		return nil, fmt.Errorf("reap interval must be positive, got %s", opts.ReapInterval)
	}
	if opts.UploadDir == "" {
		return nil, errors.New("upload dir cannot be empty")
	}
	if opts.MediaURL == "" {
		opts.MediaURL = "/media"
	}

	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	switch opts.LogFormat {
	case "":
		opts.LogFormat = LogFormatText
	case LogFormatText, LogFormatJSON:
	default:
		return nil, fmt.Errorf("log format must be %q or %q, got %q", LogFormatText, LogFormatJSON, opts.LogFormat)
	}

	return &Config{
		ServerAddr:     opts.ServerAddr,
		AllowedOrigins: opts.AllowedOrigins,
		RoomTTL:        opts.RoomTTL,
		ReapInterval:   opts.ReapInterval,
		UploadDir:      opts.UploadDir,
		MediaURL:       opts.MediaURL,
		LogLevel:       level,
		LogFormat:      opts.LogFormat,
	}, nil
}

// NewLogger builds the process logger writing to out.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(c.LogLevel)
	if c.LogFormat == LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
