package main

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates request outcomes from concurrent workers.
type Stats struct {
	total       atomic.Int64
	success     atomic.Int64
	failed      atomic.Int64
	zeroResults atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 1<<16),
		statuses:  make(map[int]int64),
	}
}

// Record adds one request. A transport error counts as a failure with no
// status or latency sample.
func (s *Stats) Record(d time.Duration, status, returned int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
		if returned == 0 {
			s.zeroResults.Add(1)
		}
	} else {
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statuses[status]++
	s.mu.Unlock()
}

// Report is a summary of the recorded requests.
type Report struct {
	Total       int64
	Success     int64
	Failed      int64
	ZeroResults int64
	RPS         float64
	Min         time.Duration
	Avg         time.Duration
	P50         time.Duration
	P90         time.Duration
	P99         time.Duration
	Max         time.Duration
	StdDev      time.Duration
	Statuses    map[int]int64
}

// Report summarizes the run that lasted elapsed.
func (s *Stats) Report(elapsed time.Duration) Report {
	r := Report{
		Total:       s.total.Load(),
		Success:     s.success.Load(),
		Failed:      s.failed.Load(),
		ZeroResults: s.zeroResults.Load(),
		Statuses:    make(map[int]int64),
	}
	if elapsed > 0 {
		r.RPS = float64(r.Total) / elapsed.Seconds()
	}

	s.mu.Lock()
	lat := append([]time.Duration(nil), s.latencies...)
	for code, n := range s.statuses {
		r.Statuses[code] = n
	}
	s.mu.Unlock()

	if len(lat) == 0 {
		return r
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	var sum time.Duration
	for _, l := range lat {
		sum += l
	}
	r.Min, r.Max = lat[0], lat[len(lat)-1]
	r.Avg = sum / time.Duration(len(lat))
	r.P50 = percentile(lat, 50)
	r.P90 = percentile(lat, 90)
	r.P99 = percentile(lat, 99)

	var sq float64
	for _, l := range lat {
		d := float64(l - r.Avg)
		sq += d * d
	}
	r.StdDev = time.Duration(math.Sqrt(sq / float64(len(lat))))
	return r
}

// percentile uses nearest rank on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
