package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// API configures the plan API service.
type API struct {
	Addr                string
	DatabaseURL         string
	JWTSecret           string
	DefaultTimeout      int
	DefaultRecommendMax int

	KafkaBrokers []string
	KafkaTopic   string
	S3Bucket     string
	S3Prefix     string
}

// Worker configures one of the three plan worker pools plus its RPC
// client toward the data service.
type Worker struct {
	DatabaseURL    string
	Owner          string
	PollInterval   time.Duration
	MaxCounter     int
	ReclaimTimeout time.Duration
	Concurrent     bool

	// MessagingTimeout bounds one RPC round-trip over the shared store.
	MessagingTimeout time.Duration

	// SolverTimeout bounds a single search (solver pool only). Must stay
	// below ReclaimTimeout or a live search can be reclaimed mid-flight.
	SolverTimeout time.Duration
}

const (
	defaultAddr           = ":8091"
	defaultTimeout        = 600
	defaultRecommendMax   = 1
	defaultPollInterval   = time.Second
	defaultMaxCounter     = 1
	defaultReclaimTimeout = 10 * time.Minute
	defaultSolverTimeout  = 4 * time.Minute
	defaultMsgTimeout     = 2 * time.Minute
	defaultKafkaTopic     = "homing.plan-events"
)

func LoadAPI() (API, error) {
	cfg := API{
		Addr:                getEnv("HOMING_ADDR", defaultAddr),
		DatabaseURL:         firstNonEmpty(os.Getenv("HOMING_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		JWTSecret:           os.Getenv("HOMING_JWT_SECRET"),
		DefaultTimeout:      getInt("HOMING_DEFAULT_TIMEOUT", defaultTimeout),
		DefaultRecommendMax: getInt("HOMING_DEFAULT_RECOMMEND_MAX", defaultRecommendMax),
		KafkaBrokers:        splitList(os.Getenv("HOMING_KAFKA_BROKERS")),
		KafkaTopic:          getEnv("HOMING_KAFKA_TOPIC", defaultKafkaTopic),
		S3Bucket:            os.Getenv("HOMING_S3_BUCKET"),
		S3Prefix:            os.Getenv("HOMING_S3_PREFIX"),
	}
	if cfg.DatabaseURL == "" {
		return API{}, fmt.Errorf("DATABASE_URL or HOMING_DATABASE_URL required")
	}
	return cfg, nil
}

// LoadWorker reads the configuration for one worker stage (translator,
// solver, or reservation). Each stage has its own stuck-ownership reclaim
// window, HOMING_<STAGE>_RECLAIM_TIMEOUT, falling back to the shared
// HOMING_RECLAIM_TIMEOUT.
func LoadWorker(stage string) (Worker, error) {
	host, _ := os.Hostname()
	shared := getDuration("HOMING_RECLAIM_TIMEOUT", defaultReclaimTimeout)
	cfg := Worker{
		DatabaseURL:      firstNonEmpty(os.Getenv("HOMING_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		Owner:            getEnv("HOMING_OWNER", host),
		PollInterval:     getDuration("HOMING_POLL_INTERVAL", defaultPollInterval),
		MaxCounter:       getInt("HOMING_MAX_COUNTER", defaultMaxCounter),
		ReclaimTimeout:   getDuration("HOMING_"+strings.ToUpper(stage)+"_RECLAIM_TIMEOUT", shared),
		Concurrent:       getBool("HOMING_CONCURRENT", false),
		MessagingTimeout: getDuration("HOMING_MESSAGING_TIMEOUT", defaultMsgTimeout),
		SolverTimeout:    getDuration("HOMING_SOLVER_TIMEOUT", defaultSolverTimeout),
	}
	if cfg.DatabaseURL == "" {
		return Worker{}, fmt.Errorf("DATABASE_URL or HOMING_DATABASE_URL required")
	}
	// Only the solver pool runs searches against its own reclaim window.
	if stage == "solver" && cfg.SolverTimeout >= cfg.ReclaimTimeout {
		return Worker{}, fmt.Errorf("HOMING_SOLVER_TIMEOUT (%s) must be below the solver reclaim timeout (%s)",
			cfg.SolverTimeout, cfg.ReclaimTimeout)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
