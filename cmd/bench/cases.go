// README: Runner checks: environment, booking flow, oversell race, and estimate throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridebook/internal/infra"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// populated by the flow checks, read by later ones
	rideID    string
	bookingID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigrations},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: checkHealth},
		{Name: "Flow: driver publishes ride", Run: publishRide},
		{Name: "Flow: passenger books 2 seats", Run: bookTwo},
		{Name: "Flow: over-capacity booking rejected", Run: bookOverCapacity},
		{Name: "Flow: cancel twice releases once", Run: cancelTwice},
		{Name: "Flow: fee percentage readable", Run: readFee},
		{Name: "Concurrency: no oversell", Run: noOversell},
		{Name: "Consistency: seats held match bookings", Run: checkSeatInvariant},
		{Name: "Perf: estimate throughput", Run: perfEstimate},
	}
}

func skip(note string) Result { return Result{Status: StatusSkip, Note: note} }
func fail(format string, args ...any) Result {
	return Result{Status: StatusFail, Note: fmt.Sprintf(format, args...)}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return skip("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return fail("%v", err)
	}
	return Result{Status: StatusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return skip("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fail("%v", err)
	}
	return Result{Status: StatusPass}
}

func applyMigrations(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return skip("apply-migration=false")
	}
	if r.db == nil {
		return skip("db not configured")
	}
	if err := infra.ApplyMigrations(ctx, r.db, r.cfg.MigrationDir); err != nil {
		return fail("%v", err)
	}
	return Result{Status: StatusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return skip("db not configured")
	}
	tables, err := extractTables(r.cfg.MigrationDir)
	if err != nil {
		return fail("%v", err)
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return fail("%v", err)
		}
		if !exists {
			return fail("missing table: %s", t)
		}
	}
	return Result{Status: StatusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	status, _, latency, err := r.call(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusOK {
		return fail("status=%d", status)
	}
	return Result{Status: StatusPass, Latency: latency}
}

func publishRide(ctx context.Context, r *Runner) Result {
	if r.cfg.DriverToken == "" {
		return skip("driver token not configured")
	}
	id, latency, err := r.newRide(ctx, 2)
	if err != nil {
		return fail("%v", err)
	}
	r.rideID = id
	return Result{Status: StatusPass, Latency: latency, Note: "ride=" + id}
}

func bookTwo(ctx context.Context, r *Runner) Result {
	if r.rideID == "" || r.cfg.PassengerToken == "" {
		return skip("no ride or passenger token")
	}
	status, body, latency, err := r.call(ctx, http.MethodPost, "/api/bookings", r.cfg.PassengerToken,
		map[string]any{"ride_id": r.rideID, "seats_requested": 2})
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusCreated {
		return fail("status=%d error=%v", status, body["error"])
	}
	r.bookingID, _ = body["booking_id"].(string)
	return Result{Status: StatusPass, Latency: latency, Note: fmt.Sprintf("total=%v", body["total_price"])}
}

func bookOverCapacity(ctx context.Context, r *Runner) Result {
	if r.bookingID == "" {
		return skip("no booking")
	}
	status, body, latency, err := r.call(ctx, http.MethodPost, "/api/bookings", r.cfg.PassengerToken,
		map[string]any{"ride_id": r.rideID, "seats_requested": 1})
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusBadRequest || body["error"] != "seats_unavailable" {
		return fail("status=%d error=%v", status, body["error"])
	}
	return Result{Status: StatusPass, Latency: latency}
}

func cancelTwice(ctx context.Context, r *Runner) Result {
	if r.bookingID == "" {
		return skip("no booking")
	}
	for i := 0; i < 2; i++ {
		status, body, _, err := r.call(ctx, http.MethodPost, "/api/bookings/"+r.bookingID+"/cancel", r.cfg.PassengerToken, nil)
		if err != nil {
			return fail("%v", err)
		}
		if status != http.StatusOK {
			return fail("cancel #%d status=%d error=%v", i+1, status, body["error"])
		}
	}
	seats, err := r.availableSeats(ctx, r.rideID)
	if err != nil {
		return fail("%v", err)
	}
	if seats != 2 {
		return fail("available_seats=%d, want 2", seats)
	}
	return Result{Status: StatusPass}
}

func readFee(ctx context.Context, r *Runner) Result {
	if r.cfg.PassengerToken == "" {
		return skip("passenger token not configured")
	}
	status, body, latency, err := r.call(ctx, http.MethodGet, "/api/pricing/fee-percentage", r.cfg.PassengerToken, nil)
	if err != nil {
		return fail("%v", err)
	}
	if status != http.StatusOK {
		return fail("status=%d", status)
	}
	return Result{Status: StatusPass, Latency: latency, Note: fmt.Sprintf("percentage=%v", body["percentage"])}
}

// noOversell fires Concurrency single-seat bookings at a ride with half as many seats.
func noOversell(ctx context.Context, r *Runner) Result {
	if r.cfg.DriverToken == "" || r.cfg.PassengerToken == "" {
		return skip("tokens not configured")
	}
	capacity := r.cfg.Concurrency / 2
	if capacity < 1 {
		capacity = 1
	}
	rideID, _, err := r.newRide(ctx, capacity)
	if err != nil {
		return fail("%v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
		other    []int
	)
	start := make(chan struct{})
	begin := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, _, _, err := r.call(ctx, http.MethodPost, "/api/bookings", r.cfg.PassengerToken,
				map[string]any{"ride_id": rideID, "seats_requested": 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other = append(other, 0)
			case status == http.StatusCreated:
				created++
			case status == http.StatusBadRequest:
				rejected++
			default:
				other = append(other, status)
			}
		}()
	}
	close(start)
	wg.Wait()
	latency := time.Since(begin)

	seats, err := r.availableSeats(ctx, rideID)
	if err != nil {
		return fail("%v", err)
	}
	note := fmt.Sprintf("capacity=%d created=%d rejected=%d other=%v", capacity, created, rejected, other)
	if created != capacity || seats != 0 || len(other) > 0 {
		return Result{Status: StatusFail, Latency: latency, Note: note + fmt.Sprintf(" available=%d", seats)}
	}
	r.rideID = rideID
	return Result{Status: StatusPass, Latency: latency, Note: note}
}

func checkSeatInvariant(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return skip("db not configured")
	}
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.capacity - r.available_seats,
		       COALESCE(SUM(b.seats_booked) FILTER (WHERE b.status IN ('pending','approved','completed')), 0)
		FROM rides r
		LEFT JOIN bookings b ON b.ride_id = r.id
		GROUP BY r.id, r.capacity, r.available_seats`)
	if err != nil {
		return fail("%v", err)
	}
	defer rows.Close()
	var broken []string
	checked := 0
	for rows.Next() {
		var id string
		var held, booked int64
		if err := rows.Scan(&id, &held, &booked); err != nil {
			return fail("%v", err)
		}
		checked++
		if held != booked {
			broken = append(broken, fmt.Sprintf("%s(held=%d booked=%d)", id, held, booked))
		}
	}
	if err := rows.Err(); err != nil {
		return fail("%v", err)
	}
	if len(broken) > 0 {
		return fail("%v", broken)
	}
	return Result{Status: StatusPass, Note: fmt.Sprintf("rides=%d", checked)}
}

func perfEstimate(ctx context.Context, r *Runner) Result {
	if r.cfg.PassengerToken == "" {
		return skip("passenger token not configured")
	}
	payload := map[string]any{"distance_km": 12.5}
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		count    int64
		errCount int64
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.call(ctx, http.MethodPost, "/api/pricing/estimate", r.cfg.PassengerToken, payload)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return fail("no requests completed")
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func (r *Runner) newRide(ctx context.Context, capacity int) (string, time.Duration, error) {
	status, body, latency, err := r.call(ctx, http.MethodPost, "/api/rides", r.cfg.DriverToken, map[string]any{
		"origin":         "Bench Origin",
		"destination":    "Bench Destination",
		"departure_at":   time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"price_per_seat": "110.00",
		"capacity":       capacity,
	})
	if err != nil {
		return "", 0, err
	}
	if status != http.StatusCreated {
		return "", latency, fmt.Errorf("create ride: status=%d error=%v", status, body["error"])
	}
	id, _ := body["ride_id"].(string)
	return id, latency, nil
}

func (r *Runner) availableSeats(ctx context.Context, rideID string) (int, error) {
	status, body, _, err := r.call(ctx, http.MethodGet, "/api/rides/"+rideID, r.cfg.PassengerToken, nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("get ride: status=%d", status)
	}
	seats, _ := body["available_seats"].(float64)
	return int(seats), nil
}

func (r *Runner) call(ctx context.Context, method, path, token string, body any) (int, map[string]any, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, latency, nil
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var tables []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
