// Package effects implements the side effects workflows drive: traffic
// reduction and configuration transforms.
package effects

import (
	"context"
	"log/slog"

	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/workflow"
)

// Logging records each effect in the log and succeeds. It stands in for a
// traffic controller in development and dry runs.
type Logging struct {
	logger *slog.Logger
}

var (
	_ workflow.TrafficReducer = (*Logging)(nil)
	_ workflow.Transformer    = (*Logging)(nil)
)

// NewLogging creates a logging effect. A nil logger uses the module logger.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = log.WithModule("effects")
	}

	return &Logging{logger: logger}
}

func (l *Logging) ReduceTraffic(ctx context.Context, configurationName, stage string, from, to int) error {
	l.logger.InfoContext(ctx, "Traffic reduced",
		"configuration", configurationName,
		"stage", stage,
		"from", from,
		"to", to)

	return nil
}

func (l *Logging) Transform(ctx context.Context, configurationName string) error {
	l.logger.InfoContext(ctx, "Configuration transformed", "configuration", configurationName)

	return nil
}

// Effects serves both effect kinds from l.
func (l *Logging) Effects() workflow.Effects {
	return workflow.Effects{Reducer: l, Transformer: l}
}
