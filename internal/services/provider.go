package services

import "context"

// Checker reports whether an external dependency is reachable
type Checker interface {
	// Name identifies the dependency in readiness output
	Name() string

	// HealthCheck returns nil when the dependency is usable
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checker
type CheckFunc struct {
	name  string
	check func(ctx context.Context) error
}

// NewCheckFunc builds a named Checker from fn
func NewCheckFunc(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, check: fn}
}

// Name returns the dependency name
func (c *CheckFunc) Name() string {
	return c.name
}

// HealthCheck runs the wrapped function
func (c *CheckFunc) HealthCheck(ctx context.Context) error {
	return c.check(ctx)
}
