package common

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

// CheckStatus represents the status of a single dependency check
type CheckStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

var startTime = time.Now()

// HealthCheck returns a liveness handler. Always 200 while the
// process runs.
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
		})
	}
}

// ReadinessProbe returns a readiness handler running the dependency
// checks in parallel. Any failing check turns the response 503.
func ReadinessProbe(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		type checkResult struct {
			name     string
			err      error
			duration time.Duration
		}

		results := make(chan checkResult, len(checks))
		var wg sync.WaitGroup
		for name, check := range checks {
			wg.Add(1)
			go func(name string, check func() error) {
				defer wg.Done()
				start := time.Now()
				results <- checkResult{name: name, err: check(), duration: time.Since(start)}
			}(name, check)
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		status := "ready"
		checkStatuses := make(map[string]CheckStatus, len(checks))
		for result := range results {
			cs := CheckStatus{Status: "healthy", Duration: result.duration.String()}
			if result.err != nil {
				cs.Status = "unhealthy"
				cs.Message = result.err.Error()
				status = "not ready"
			}
			checkStatuses[result.name] = cs
		}

		code := http.StatusOK
		if status != "ready" {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, HealthResponse{
			Status:    status,
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Checks:    checkStatuses,
		})
	}
}
