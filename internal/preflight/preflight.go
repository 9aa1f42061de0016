package preflight

import (
	"context"

	"pagepreview/internal/config"
)

// Result reports the outcome of a single preflight check. A warning passes
// but deserves the operator's attention.
type Result struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// RunAll executes the checks that apply to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)}
	if cfg.Storage.Backend != config.StorageS3 {
		results = append(results, CheckDirectoryAccess("Preview directory", cfg.Paths.PreviewDir))
	}
	results = append(results, CheckSiteURL(cfg.Paths.SiteURL))
	results = append(results, CheckRenderEndpoint(ctx, cfg.Render.Endpoint))
	if cfg.Queue.Backend == config.QueueRedis {
		results = append(results, CheckRedis(ctx, cfg.Redis))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
