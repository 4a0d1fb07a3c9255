package api

import (
	"context"
	"time"

	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/jobs"
	"git.coderun.dev/coderun/coderun/src/metrics"
	"git.coderun.dev/coderun/coderun/src/utils"
	"github.com/jpillora/backoff"
)

// MonitorHealth pings the API every cfg.HealthCheckInterval and reports the
// result through the api_up gauge. While the API is down it checks again
// sooner, backing off up to the regular interval.
func MonitorHealth(c *Client, cfg config.ApiConfig) *jobs.Job {
	if cfg.HealthCheckInterval <= 0 {
		return jobs.Noop()
	}

	return jobs.Go("api health monitor", func(job *jobs.Job) {
		log := job.Logger

		boff := backoff.Backoff{
			Min: 1 * time.Second,
			Max: cfg.HealthCheckInterval,
		}

		up := true
		for {
			ctx, cancel := context.WithTimeout(job.Ctx, cfg.Timeout)
			err := c.Ping(ctx, cfg.HealthPath)
			cancel()

			select {
			case <-job.Canceled():
				return
			default:
			}

			wait := cfg.HealthCheckInterval
			if err != nil {
				wait = boff.Duration()
				if up {
					log.Error().Err(err).Msg("the API stopped answering")
				} else {
					log.Debug().Err(err).Dur("retrying after", wait).Msg("the API is still down")
				}
			} else {
				boff.Reset()
				if !up {
					log.Info().Msg("the API is answering again")
				}
			}
			up = err == nil
			metrics.SetApiUp(up)

			if err := utils.SleepContext(job.Ctx, wait); err != nil {
				return
			}
		}
	})
}
