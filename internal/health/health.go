// Package health reports readiness of the service's dependencies over HTTP and gRPC.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const checkTimeout = 2 * time.Second

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

type check struct {
	name string
	fn   CheckFunc
}

// Checker runs named dependency checks. A Checker with no checks is always healthy.
type Checker struct {
	checks []check
}

// NewChecker returns an empty Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Add registers fn under name. A nil fn is ignored.
func (c *Checker) Add(name string, fn CheckFunc) *Checker {
	if fn != nil {
		c.checks = append(c.checks, check{name: name, fn: fn})
	}
	return c
}

// AddPinger registers a database ping. A nil pinger is ignored.
func (c *Checker) AddPinger(name string, p Pinger) *Checker {
	if p == nil {
		return c
	}
	return c.Add(name, p.PingContext)
}

// AddPolicy registers a policy engine check. A nil checker is ignored.
func (c *Checker) AddPolicy(name string, p PolicyChecker) *Checker {
	if p == nil {
		return c
	}
	return c.Add(name, p.HealthCheck)
}

// Report is the outcome of one Run.
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components,omitempty"`
}

// Run executes every check with a short timeout. Failures are reported, not returned.
func (c *Checker) Run(ctx context.Context) Report {
	r := Report{Healthy: true}
	if len(c.checks) == 0 {
		return r
	}
	r.Components = make(map[string]string, len(c.checks))
	for _, ch := range c.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := ch.fn(cctx)
		cancel()
		if err != nil {
			r.Healthy = false
			r.Components[ch.name] = "unavailable"
			log.Warn().Err(err).Str("component", ch.name).Msg("health: check failed")
			continue
		}
		r.Components[ch.name] = "ok"
	}
	return r
}

// Handler serves GET /healthz: 200 when every check passes, 503 otherwise.
func (c *Checker) Handler(ctx *gin.Context) {
	r := c.Run(ctx.Request.Context())
	status := http.StatusOK
	if !r.Healthy {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, r)
}

// StatusSetter is implemented by *health.Server from google.golang.org/grpc/health.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Watch runs the checks every interval and mirrors the result into the gRPC health
// server for the overall ("") service until ctx is done.
func (c *Checker) Watch(ctx context.Context, srv StatusSetter, interval time.Duration) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if !c.Run(ctx).Healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		srv.SetServingStatus("", status)
	}
	update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			update()
		}
	}
}
