package mode

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/khaledhikmat/vs-detect/benchmark"
	"github.com/khaledhikmat/vs-detect/detect"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// Profiles prints the algorithm comparison and warns about model files
// missing from the model directory.
func Profiles(canxCtx context.Context, svcs Services) error {
	profiles := svcs.Catalog.Profiles()
	if err := benchmark.WriteComparison(os.Stdout, profiles); err != nil {
		return err
	}

	dir := svcs.CfgSvc.GetModelDir()
	for _, p := range profiles {
		if missing := detect.VerifyModelFiles(p, dir); len(missing) > 0 {
			lgr.Logger.WarnContext(canxCtx, "model files missing",
				slog.String("algorithm", p.Name),
				slog.String("dir", dir),
				slog.String("files", strings.Join(missing, ",")),
			)
		}
	}
	return nil
}
