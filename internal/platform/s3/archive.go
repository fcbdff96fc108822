package s3

import (
	"context"
	"path"
	"strings"
)

const reportPrefix = "runs"

// ReportKey returns the object key of a build's report within a run.
func ReportKey(runID, build string) string {
	return path.Join(reportPrefix, runID, build+".yaml")
}

// PutReport stores a run report, creating the bucket on first use, and
// returns the key it was written to.
func (c *Client) PutReport(ctx context.Context, bucket, runID, build string, report []byte) (string, error) {
	if err := c.CreateBucket(ctx, bucket); err != nil {
		return "", err
	}
	key := ReportKey(runID, build)
	if err := c.PutObject(ctx, bucket, key, report, "application/yaml"); err != nil {
		return "", err
	}
	return key, nil
}

// ListRuns returns the run IDs that have reports in bucket, in listing order.
func (c *Client) ListRuns(ctx context.Context, bucket string) ([]string, error) {
	objects, err := c.ListObjects(ctx, bucket, reportPrefix+"/")
	if err != nil {
		return nil, err
	}

	var runs []string
	seen := make(map[string]bool)
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, reportPrefix+"/")
		run, _, ok := strings.Cut(rest, "/")
		if !ok || seen[run] {
			continue
		}
		seen[run] = true
		runs = append(runs, run)
	}
	return runs, nil
}
