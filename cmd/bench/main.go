// README: Smoke and load runner against a live ridebook API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := tally(results)
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

func tally(results []Result) (pass, fail, skipped int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skipped++
		}
	}
	return pass, fail, skipped
}

type Config struct {
	BaseURL        string
	DSN            string
	RedisAddr      string
	MigrationDir   string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
	DriverToken    string
	PassengerToken string
	AdminToken     string
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("RIDEBOOK_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("RIDEBOOK_DB_DSN"), "Postgres DSN (empty skips DB checks)")
	flag.StringVar(&cfg.RedisAddr, "redis", os.Getenv("RIDEBOOK_REDIS_ADDR"), "Redis address (empty skips Redis checks)")
	flag.StringVar(&cfg.MigrationDir, "migrations", envOrDefault("RIDEBOOK_BENCH_MIGRATIONS", "migrations"), "Migration directory")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", envOrDefaultBool("RIDEBOOK_BENCH_APPLY_MIGRATION", false), "Apply migrations before tests")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("RIDEBOOK_BENCH_STRICT", false), "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("RIDEBOOK_BENCH_TIMEOUT", 60*time.Second), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("RIDEBOOK_BENCH_CONCURRENCY", 20), "Concurrent clients")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("RIDEBOOK_BENCH_DURATION", 10*time.Second), "Duration for perf checks")
	flag.StringVar(&cfg.DriverToken, "driver-token", os.Getenv("RIDEBOOK_BENCH_DRIVER_TOKEN"), "ID token with the driver role")
	flag.StringVar(&cfg.PassengerToken, "passenger-token", os.Getenv("RIDEBOOK_BENCH_PASSENGER_TOKEN"), "ID token of a passenger")
	flag.StringVar(&cfg.AdminToken, "admin-token", os.Getenv("RIDEBOOK_BENCH_ADMIN_TOKEN"), "ID token with the admin role")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
