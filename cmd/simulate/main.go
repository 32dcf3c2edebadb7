package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/clinic-booking/internal/config"
	"github.com/careslot/clinic-booking/internal/db"
	"github.com/careslot/clinic-booking/internal/timeslot"
)

// The simulator deliberately points many workers at the same staff-days to
// measure booking contention: every slot must be won by exactly one caller.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Days        int
	PostgresDSN string
}

type DataPool struct {
	ClinicID uuid.UUID
	StaffIDs []uuid.UUID
	TypeIDs  []uuid.UUID
	Patients []uuid.UUID
	mu       sync.RWMutex
	booked   []uuid.UUID
}

func (dp *DataPool) AddBooked(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked = append(dp.booked, id)
}

func (dp *DataPool) RandomBooked() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.booked) == 0 {
		return uuid.Nil, false
	}
	return dp.booked[rand.Intn(len(dp.booked))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	ListSlots OperationMetrics
	Booking   OperationMetrics
	Cancel    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 4)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: clinic=%s staff=%d types=%d patients=%d",
		dataPool.ClinicID, len(dataPool.StaffIDs), len(dataPool.TypeIDs), len(dataPool.Patients))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		Days:        getInt("SIM_DAYS", 3),
		PostgresDSN: baseCfg.PostgresDSN,
	}
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dataPool := &DataPool{}

	err := pool.QueryRow(ctx, `SELECT id FROM clinics LIMIT 1`).Scan(&dataPool.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}

	if dataPool.StaffIDs, err = loadIDs(ctx, pool,
		`SELECT id FROM staff WHERE clinic_id = $1 AND active LIMIT 20`, dataPool.ClinicID); err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if dataPool.TypeIDs, err = loadIDs(ctx, pool,
		`SELECT id FROM appointment_types WHERE clinic_id = $1 AND active LIMIT 20`, dataPool.ClinicID); err != nil {
		return nil, fmt.Errorf("load appointment types: %w", err)
	}
	if dataPool.Patients, err = loadIDs(ctx, pool,
		`SELECT id FROM patients WHERE clinic_id = $1 LIMIT 4000`, dataPool.ClinicID); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	if len(dataPool.StaffIDs) == 0 || len(dataPool.TypeIDs) == 0 || len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("seed data missing, run cmd/seed first")
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			switch r := rng.Float64(); {
			case r < 0.7:
				s.doBooking(ctx, rng)
			case r < 0.9:
				s.doListSlots(ctx, rng)
			default:
				s.doCancel(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, 1+rng.Intn(s.config.Days)).Format(timeslot.DateLayout)
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	staffID := s.pool.StaffIDs[rng.Intn(len(s.pool.StaffIDs))]
	typeID := s.pool.TypeIDs[rng.Intn(len(s.pool.TypeIDs))]

	url := fmt.Sprintf("%s/api/v1/clinics/%s/staff/%s/slots?type_id=%s&date=%s",
		s.config.APIBaseURL, s.pool.ClinicID, staffID, typeID, s.randomDate(rng))

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ListSlots.Record(latency, success, false)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	staffID := s.pool.StaffIDs[rng.Intn(len(s.pool.StaffIDs))]
	typeID := s.pool.TypeIDs[rng.Intn(len(s.pool.TypeIDs))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	// First fetch real slots, then fight over one of the first few so
	// workers collide on purpose.
	url := fmt.Sprintf("%s/api/v1/clinics/%s/staff/%s/slots?type_id=%s&date=%s",
		s.config.APIBaseURL, s.pool.ClinicID, staffID, typeID, s.randomDate(rng))

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.Booking.Record(0, false, false)
		return
	}
	var slots []struct {
		StartTime time.Time `json:"start_time"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&slots)
	resp.Body.Close()
	if decodeErr != nil || len(slots) == 0 {
		return
	}

	pick := slots[rng.Intn(minInt(len(slots), 4))]

	body, _ := json.Marshal(map[string]any{
		"patient_id":          patientID.String(),
		"staff_id":            staffID.String(),
		"appointment_type_id": typeID.String(),
		"start_time":          pick.StartTime,
	})

	start := time.Now()
	bookReq, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/clinics/%s/appointments", s.config.APIBaseURL, s.pool.ClinicID),
		bytes.NewReader(body))
	bookReq.Header.Set("Content-Type", "application/json")

	bookResp, err := s.client.Do(bookReq)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		if bookResp.StatusCode == http.StatusCreated {
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(bookResp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddBooked(created.ID)
			}
		} else if bookResp.StatusCode == http.StatusConflict {
			conflict = true
		}
		bookResp.Body.Close()
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomBooked()
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/clinics/%s/appointments/%s/cancel",
			s.config.APIBaseURL, s.pool.ClinicID, apptID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
		resp.Body.Close()
	}
	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\nSIMULATION REPORT")
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("List Slots", &s.metrics.ListSlots)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
