package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker implements circuit breaker pattern for resilience
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	state        CircuitBreakerState
	failureCount int
	lastFailTime time.Time
	mutex        sync.RWMutex
}

// APIClient handles communication with the Telemetry API Service
type APIClient struct {
	baseURL        string
	httpClient     *http.Client
	ingestAPIKey   string
	circuitBreaker *CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, ingestAPIKey string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		ingestAPIKey: ingestAPIKey,
		circuitBreaker: &CircuitBreaker{
			maxFailures:  5,
			resetTimeout: 30 * time.Second,
			state:        StateClosed,
		},
		maxRetries: 3,
		retryDelay: 1 * time.Second,
	}
}

// IngestRequest represents the request to ingest a reading
type IngestRequest struct {
	Temperature float64    `json:"temperature"`
	Humidity    float64    `json:"humidity"`
	DeviceID    string     `json:"device_id,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// IngestResponse represents the response from reading ingestion
type IngestResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// Circuit breaker methods
func (cb *CircuitBreaker) canExecute() bool {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		return time.Since(cb.lastFailTime) > cb.resetTimeout
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	cb.state = StateClosed
}

func (cb *CircuitBreaker) onFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()

	if cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// retryWithBackoff executes a function with exponential backoff retry logic
func (c *APIClient) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Check circuit breaker
		if !c.circuitBreaker.canExecute() {
			return fmt.Errorf("circuit breaker is open")
		}

		err := operation()
		if err == nil {
			c.circuitBreaker.onSuccess()
			return nil
		}

		lastErr = err
		c.circuitBreaker.onFailure()

		if attempt == c.maxRetries {
			break
		}

		delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// Continue to next attempt
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// IngestReading submits a reading to the API Service ingest endpoint.
// Client-error responses are not retried: the payload won't get any better.
func (c *APIClient) IngestReading(ctx context.Context, req IngestRequest) error {
	var resultErr error

	err := c.retryWithBackoff(ctx, func() error {
		resp, err := c.makeRequest(ctx, "POST", "/api/sensor-data", req)
		if err != nil {
			resultErr = fmt.Errorf("failed to ingest reading: %w", err)
			return resultErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resultErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil
			}
			return resultErr
		}
		resultErr = nil

		var response IngestResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			resultErr = fmt.Errorf("failed to decode response: %w", err)
			return resultErr
		}

		if response.Status != "success" {
			resultErr = fmt.Errorf("API error: %s", response.Message)
			return resultErr
		}

		return nil
	})

	if err != nil {
		return err
	}
	return resultErr
}

// makeRequest makes an HTTP request to the API Service
func (c *APIClient) makeRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.ingestAPIKey != "" {
		req.Header.Set("X-API-Key", c.ingestAPIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "telemetry-bridge")

	return c.httpClient.Do(req)
}

// Health checks if the API Service is healthy
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, "GET", "/api/health", nil)
	if err != nil {
		return fmt.Errorf("failed to check API health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	c.circuitBreaker.mutex.RLock()
	defer c.circuitBreaker.mutex.RUnlock()

	stateStr := "unknown"
	switch c.circuitBreaker.state {
	case StateClosed:
		stateStr = "closed"
	case StateOpen:
		stateStr = "open"
	case StateHalfOpen:
		stateStr = "half-open"
	}

	return map[string]interface{}{
		"state":         stateStr,
		"failure_count": c.circuitBreaker.failureCount,
	}
}
