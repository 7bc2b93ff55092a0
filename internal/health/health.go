// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package health serves the aggregated health report of a miniservice.
//
// Hosts register [Checker] implementations under the health-checks
// capability, typically from the post-composition hook; the request pipeline
// serves them at [Path].
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/MKhiriev/go-miniservice/internal/logger"
)

// Path is where the pipeline mounts the health handler.
const Path = "/healthz"

// DefaultTimeout bounds a whole health evaluation.
const DefaultTimeout = 5 * time.Second

const (
	StatusHealthy   = "Healthy"
	StatusUnhealthy = "Unhealthy"
)

// Report is the JSON document served by Handler.
type Report struct {
	Status   string                 `json:"status"`
	Duration string                 `json:"duration"`
	Checks   map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// Evaluate runs every checker concurrently and aggregates the results. The
// report is healthy only when every check passes.
func Evaluate(ctx context.Context, checkers ...Checker) Report {
	start := time.Now()
	report := Report{
		Status: StatusHealthy,
		Checks: make(map[string]CheckResult, len(checkers)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			began := time.Now()
			err := c.Check(ctx)
			result := CheckResult{Status: StatusHealthy, Duration: time.Since(began).String()}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
			}

			mu.Lock()
			report.Checks[c.Name()] = result
			if err != nil {
				report.Status = StatusUnhealthy
			}
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	report.Duration = time.Since(start).String()
	return report
}

// Handler serves the report of checkers: 200 when healthy, 503 otherwise.
// A zero timeout uses DefaultTimeout.
func Handler(timeout time.Duration, checkers ...Checker) http.HandlerFunc {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		report := Evaluate(ctx, checkers...)

		status := http.StatusOK
		if report.Status != StatusHealthy {
			status = http.StatusServiceUnavailable
			logger.FromRequest(r).Warn().Interface("checks", report.Checks).Msg("health check failed")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.FromRequest(r).Err(err).Msg("encode health report")
		}
	}
}
