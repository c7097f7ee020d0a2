package convert

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"bibr/config"
	"bibr/pipeline"
	"bibr/state"
)

// reportingFetcher keeps copies of everything fetched in debug report.
type reportingFetcher struct {
	next  pipeline.Fetcher
	rpt   *config.Report
	log   *zap.Logger
	count int
}

func newFetcher(env *state.LocalEnv, log *zap.Logger) pipeline.Fetcher {
	f := pipeline.NewFetcher(env.Cfg.Sources.Timeout, env.Cfg.Sources.UserAgent)
	if env.Rpt == nil {
		return f
	}
	return &reportingFetcher{next: f, rpt: env.Rpt, log: log}
}

func (f *reportingFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	data, err := f.next.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	f.count++
	name := fmt.Sprintf("sources/%02d-%s", f.count, filepath.Base(location))
	f.rpt.StoreData(name, data)
	f.log.Debug("Source stored in report", zap.String("location", location), zap.String("entry", name))
	return data, nil
}
