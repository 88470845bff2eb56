// Public domain.

package gprog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jpssrocha/gaiaget/internal/tap"
)

// Config holds environment-driven settings.  Command line options override
// them.
type Config struct {
	TapURL         string        // GAIA_TAP_URL
	Credentials    string        // GAIA_CREDENTIALS, credentials file path
	ZptDir         string        // GAIAGET_ZPT_DIR
	RowLimit       int           // GAIAGET_ROW_LIMIT, no limit if <= 0
	RequestTimeout time.Duration // GAIAGET_REQUEST_TIMEOUT
	DatabaseURL    string        // DATABASE_URL
}

// LoadConfig reads configuration from environment variables, first loading
// envFile if it exists.  Variables already set in the environment take
// precedence over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%s: %w", envFile, err)
		}
	}

	cfg := Config{
		TapURL:         tap.DefaultURL,
		ZptDir:         ".",
		RequestTimeout: 5 * time.Minute,
	}
	if v := os.Getenv("GAIA_TAP_URL"); v != "" {
		cfg.TapURL = v
	}
	cfg.Credentials = os.Getenv("GAIA_CREDENTIALS")
	if v := os.Getenv("GAIAGET_ZPT_DIR"); v != "" {
		cfg.ZptDir = v
	}
	if v := os.Getenv("GAIAGET_ROW_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid GAIAGET_ROW_LIMIT: %s", v)
		}
		cfg.RowLimit = n
	}
	if v := os.Getenv("GAIAGET_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid GAIAGET_REQUEST_TIMEOUT: %s", v)
		}
		cfg.RequestTimeout = d
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	return cfg, nil
}
