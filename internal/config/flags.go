package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	defaultAddr         = "localhost:8000"
	defaultRoomTTL      = time.Hour
	defaultReapInterval = 5 * time.Minute
	defaultUploadDir    = "uploads"
)

// Load reads an optional .env file, then parses args with flag defaults
// taken from the environment. Flags win over the environment.
func Load(args []string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	ttl, err := envRoomTTL()
	if err != nil {
		return nil, err
	}
	reap, err := envDuration("ROOM_REAP_INTERVAL", defaultReapInterval)
	if err != nil {
		return nil, err
	}

	var opts Options
	flagSet := pflag.NewFlagSet("cliproom", pflag.ContinueOnError)
	flagSet.StringVar(&opts.ServerAddr, "addr", envString("CLIPROOM_ADDR", defaultAddr), "server address")
	flagSet.StringSliceVar(&opts.AllowedOrigins, "allowed-origins", envList("CLIPROOM_ALLOWED_ORIGINS"), "comma-separated list of allowed origins for CORS")
	flagSet.DurationVar(&opts.RoomTTL, "room-ttl", ttl, "lifetime of a room from its creation")
	flagSet.DurationVar(&opts.ReapInterval, "reap-interval", reap, "how often expired rooms are reclaimed")
	flagSet.StringVar(&opts.UploadDir, "upload-dir", envString("UPLOAD_DIR", defaultUploadDir), "directory for uploaded files")
	flagSet.StringVar(&opts.MediaURL, "media-url", envString("MEDIA_URL", "/media"), "URL prefix uploaded files are served under")
	flagSet.StringVar(&opts.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "log level")
	flagSet.StringVar(&opts.LogFormat, "log-format", envString("LOG_FORMAT", LogFormatText), "log format (text or json)")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	return NewConfig(opts)
}

// loadDotEnv does not override variables that are already set. A missing
// file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// envRoomTTL prefers ROOM_TTL and falls back to ROOM_EXPIRATION_HOURS.
func envRoomTTL() (time.Duration, error) {
	if os.Getenv("ROOM_TTL") != "" {
		return envDuration("ROOM_TTL", defaultRoomTTL)
	}

	v := os.Getenv("ROOM_EXPIRATION_HOURS")
	if v == "" {
		return defaultRoomTTL, nil
	}

	hours, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("ROOM_EXPIRATION_HOURS: %w", err)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}
