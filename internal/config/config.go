package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/VeltarosLabs/blockforge/internal/blockchain"
	"github.com/VeltarosLabs/blockforge/internal/consensus"
)

type Config struct {
	Mining MiningConfig
	API    APIConfig
	Log    LogConfig
}

type MiningConfig struct {
	Digit       string // single lowercase hex digit repeated to form the required prefix
	Difficulty  int    // prefix length
	MaxAttempts uint64
	Timeout     time.Duration
	Digest      string // charsum|merkle|blake3
}

type APIConfig struct {
	Enabled      bool
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	APIKey         string
	AllowedOrigins []string
	MineRate       float64 // tokens/sec per client for POST /mine
	MineBurst      float64
}

type LogConfig struct {
	Level  string // debug|info|warn|error
	Format string // json|text
}

func Default() Config {
	return Config{
		Mining: MiningConfig{
			Digit:       string(consensus.DefaultDigit),
			Difficulty:  consensus.DefaultLength,
			MaxAttempts: blockchain.DefaultMaxAttempts,
			Timeout:     60 * time.Second,
			Digest:      "charsum",
		},
		API: APIConfig{
			Enabled:        true,
			ListenAddr:     "127.0.0.1:8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   90 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{},
			MineRate:       0.5,
			MineBurst:      4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Engine builds the proof-of-work rule described by the mining settings.
func (m MiningConfig) Engine() (*consensus.PoW, error) {
	if len(m.Digit) != 1 {
		return nil, fmt.Errorf("%w: digit must be one character: %q", consensus.ErrInvalidConsensus, m.Digit)
	}
	return consensus.NewPoW(m.Digit[0], m.Difficulty)
}

func (m MiningConfig) PayloadDigest() (blockchain.PayloadDigest, error) {
	d, ok := blockchain.DigestByName(m.Digest)
	if !ok {
		return nil, fmt.Errorf("unknown digest: %q", m.Digest)
	}
	return d, nil
}

type Parsed struct {
	Config Config
}

func ParseNodeFlags(args []string) (Parsed, error) {
	return parseFlags("blockforge-node", args, os.Stdout)
}

func parseFlags(name string, args []string, out io.Writer) (Parsed, error) {
	cfg := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		digit       = fs.String("mining.digit", envOr("BLOCKFORGE_MINING_DIGIT", cfg.Mining.Digit), "Hex digit the block hash prefix is made of")
		difficulty  = fs.Int("mining.difficulty", envOrInt("BLOCKFORGE_MINING_DIFFICULTY", cfg.Mining.Difficulty), "Number of leading digits a block hash must carry")
		maxAttempts = fs.Uint64("mining.maxAttempts", envOrUint64("BLOCKFORGE_MINING_MAX_ATTEMPTS", cfg.Mining.MaxAttempts), "Nonces tried before a mine gives up")
		mineTimeout = fs.Duration("mining.timeout", envOrDuration("BLOCKFORGE_MINING_TIMEOUT", cfg.Mining.Timeout), "Wall clock limit for one mine")
		digest      = fs.String("mining.digest", envOr("BLOCKFORGE_MINING_DIGEST", cfg.Mining.Digest), "Payload digest: charsum|merkle|blake3")

		apiEnabled = fs.Bool("api.enabled", envOrBool("BLOCKFORGE_API_ENABLED", cfg.API.Enabled), "Enable HTTP API")
		apiListen  = fs.String("api.listen", envOr("BLOCKFORGE_API_LISTEN", cfg.API.ListenAddr), "HTTP API listen address (ip:port)")
		apiKey     = fs.String("api.key", envOr("BLOCKFORGE_API_KEY", cfg.API.APIKey), "Optional API key required on mutating endpoints")
		apiOrigins = fs.String("api.origins", envOr("BLOCKFORGE_API_ORIGINS", ""), "Comma-separated CORS origins")
		mineRate   = fs.Float64("api.mineRate", envOrFloat("BLOCKFORGE_API_MINE_RATE", cfg.API.MineRate), "POST /mine requests per second per client")
		mineBurst  = fs.Float64("api.mineBurst", envOrFloat("BLOCKFORGE_API_MINE_BURST", cfg.API.MineBurst), "POST /mine burst per client")

		logLevel  = fs.String("log.level", envOr("BLOCKFORGE_LOG_LEVEL", cfg.Log.Level), "Log level: debug|info|warn|error")
		logFormat = fs.String("log.format", envOr("BLOCKFORGE_LOG_FORMAT", cfg.Log.Format), "Log format: json|text")
	)

	if err := fs.Parse(args); err != nil {
		return Parsed{}, err
	}

	cfg.Mining.Digit = strings.TrimSpace(*digit)
	cfg.Mining.Difficulty = *difficulty
	cfg.Mining.MaxAttempts = *maxAttempts
	cfg.Mining.Timeout = *mineTimeout
	cfg.Mining.Digest = strings.TrimSpace(*digest)

	cfg.API.Enabled = *apiEnabled
	cfg.API.ListenAddr = strings.TrimSpace(*apiListen)
	cfg.API.APIKey = strings.TrimSpace(*apiKey)
	cfg.API.MineRate = *mineRate
	cfg.API.MineBurst = *mineBurst
	if o := strings.TrimSpace(*apiOrigins); o != "" {
		cfg.API.AllowedOrigins = splitCSV(o)
	}

	cfg.Log.Level = strings.TrimSpace(*logLevel)
	cfg.Log.Format = strings.TrimSpace(*logFormat)

	if err := validate(cfg); err != nil {
		return Parsed{}, err
	}

	return Parsed{Config: cfg}, nil
}

func validate(cfg Config) error {
	if _, err := cfg.Mining.Engine(); err != nil {
		return err
	}
	if cfg.Mining.MaxAttempts == 0 {
		return errors.New("mining.maxAttempts must be > 0")
	}
	if cfg.Mining.Timeout <= 0 {
		return errors.New("mining.timeout must be > 0")
	}
	if _, err := cfg.Mining.PayloadDigest(); err != nil {
		return fmt.Errorf("invalid mining.digest: %q", cfg.Mining.Digest)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", cfg.Log.Level)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format: %q", cfg.Log.Format)
	}

	if cfg.API.Enabled && cfg.API.ListenAddr == "" {
		return errors.New("api.listen must not be empty when api.enabled=true")
	}
	if cfg.API.MineRate <= 0 || cfg.API.MineBurst < 1 {
		return fmt.Errorf("api.mineRate must be > 0 and api.mineBurst >= 1, got %v/%v", cfg.API.MineRate, cfg.API.MineBurst)
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envOrInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrUint64(key string, def uint64) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envOrFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func splitCSV(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := strings.TrimSpace(r)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
