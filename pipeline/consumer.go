package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// consumeLoop hands results to the callback and the sink in queue order.
func (p *Pipeline) consumeLoop(ctx context.Context) {
	defer p.wg.Done()

	startTime := time.Now()
	results := 0
	errs := 0

	defer func() {
		p.reportStats(model.SinkStats{
			Name:    p.sinkName(),
			Results: results,
			Errors:  errs,
			Dropped: p.results.Dropped(),
			Uptime:  uptimeSince(startTime),
		})
	}()

	for {
		res, ok := p.results.PopTimeout(p.opts.ResultPoll)
		if !ok {
			if p.results.Stopped() {
				lgr.Logger.InfoContext(ctx, "result consumer stopped")
				return
			}
			continue
		}

		if p.opts.OnResult != nil {
			p.opts.OnResult(res)
		}

		if p.sink != nil {
			if err := p.sink.Consume(res); err != nil {
				errs++
				p.sinkErrors.Add(1)
				lgr.Logger.WarnContext(ctx, "sink failed",
					slog.String("sink", p.sink.Name()),
					slog.Uint64("seq", res.Seq),
					slog.Any("error", err),
				)
				p.reportError(model.GenError("sink", err,
					map[string]interface{}{"seq": res.Seq, "sink": p.sink.Name()},
					"sink failed"))
			}
		}

		results++
		p.delivered.Add(1)
	}
}

func (p *Pipeline) sinkName() string {
	if p.sink == nil {
		return "none"
	}
	return p.sink.Name()
}
