package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends everything gathered by g to the Pushgateway at url under job.
// Metrics are grouped by run so concurrent runs do not overwrite each other.
func Push(ctx context.Context, url, job, run string, g prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	pusher := push.New(url, job).Gatherer(g)
	if run != "" {
		pusher = pusher.Grouping("run", run)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
