package tasks

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/comalice/fractalx"
)

// Throttle wraps a factory so its runner runs at most at limiter's rate.
// Runs over the limit are dropped with a "throttle" warning.
func Throttle(name string, inner fractalx.TaskFactory, limiter *rate.Limiter) fractalx.TaskFactory {
	return func(api fractalx.API) fractalx.TaskRunner {
		run := inner(api)
		return func(data any) {
			if !limiter.Allow() {
				api.Warn("throttle", fmt.Sprintf("task '%s' dropped: rate limit exceeded", name))
				return
			}
			run(data)
		}
	}
}
