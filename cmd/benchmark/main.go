package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	accounts    int
	maxAmount   int64
)

var (
	totalRequests uint64
	success200    uint64
	rejected400   uint64
	failOther     uint64
	charges       uint64
	uses          uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&accounts, "accounts", 1000, "Number of account ids to spread requests over")
	flag.Int64Var(&maxAmount, "max-amount", 100, "Largest amount per request")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		id := pickAccount()
		op := "charge"
		if rand.IntN(2) == 0 {
			op = "use"
			atomic.AddUint64(&uses, 1)
		} else {
			atomic.AddUint64(&charges, 1)
		}

		body, _ := json.Marshal(map[string]int64{"amount": rand.Int64N(maxAmount) + 1})
		url := fmt.Sprintf("%s/api/v1/point/%d/%s", targetURL, id, op)

		req, _ := http.NewRequest(http.MethodPatch, url, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusBadRequest:
			atomic.AddUint64(&rejected400, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

// pickAccount returns an id in 1..accounts. The hotspot workload sends 90% of traffic to account 1.
func pickAccount() int64 {
	if workload == "hotspot" && rand.Float32() < 0.90 {
		return 1
	}
	return int64(rand.IntN(accounts) + 1)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&success200)
	rejected := atomic.LoadUint64(&rejected400)
	fErr := atomic.LoadUint64(&failOther)

	var rejectRate float64
	if total > 0 {
		rejectRate = float64(rejected) / float64(total) * 100
	}

	results := map[string]any{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  float64(total) / d.Seconds(),
		"charges":         atomic.LoadUint64(&charges),
		"uses":            atomic.LoadUint64(&uses),
		"success":         ok,
		"rejected":        rejected,
		"reject_rate_pct": rejectRate,
		"errors":          fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Could not write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
