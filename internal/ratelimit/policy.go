// Package ratelimit throttles requests per (scope, client) with a sliding
// window of request timestamps.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	ScopeAuth          = "auth"
	ScopeLogin         = "login"
	ScopeRegister      = "register"
	ScopePasswordReset = "passwordReset"
	ScopeVerify        = "verify"
)

var ErrInvalidPolicy = errors.New("invalid rate limit policy")

type Policy struct {
	Scope    string
	Interval time.Duration
	Max      int
}

func (p Policy) Validate() error {
	if p.Scope == "" {
		return fmt.Errorf("%w: empty scope", ErrInvalidPolicy)
	}
	if p.Interval <= 0 || p.Max <= 0 {
		return fmt.Errorf("%w: %s needs positive interval and max", ErrInvalidPolicy, p.Scope)
	}
	return nil
}

func (p Policy) key(client string) string { return p.Scope + ":" + client }

// DefaultPolicies are the starting values; config may override any of them.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ScopeAuth:          {Scope: ScopeAuth, Interval: 15 * time.Minute, Max: 5},
		ScopeLogin:         {Scope: ScopeLogin, Interval: 15 * time.Minute, Max: 5},
		ScopeRegister:      {Scope: ScopeRegister, Interval: time.Hour, Max: 3},
		ScopePasswordReset: {Scope: ScopePasswordReset, Interval: time.Hour, Max: 3},
		ScopeVerify:        {Scope: ScopeVerify, Interval: 15 * time.Minute, Max: 10},
	}
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until ResetAt, never negative.
func (r Result) RetryAfter(now time.Time) int {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Limiter records one request for client under p and reports whether it is
// admitted.
type Limiter interface {
	Check(ctx context.Context, p Policy, client string) (Result, error)
}
