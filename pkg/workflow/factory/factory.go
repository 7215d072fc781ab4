// Package factory selects the workflow definition for a cleanup context.
package factory

import (
	"fmt"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/workflow"
	"github.com/dukex/cleanup/pkg/workflow/archive"
	"github.com/dukex/cleanup/pkg/workflow/codereview"
	"github.com/dukex/cleanup/pkg/workflow/transform"
)

// Dependencies are handed to whichever definition is selected.
type Dependencies struct {
	Effects workflow.Effects
	Clock   workflow.Clock
}

// New builds the live workflow matching c.WorkflowType.
//
//nolint:ireturn // the concrete definition depends on the context
func New(c *models.CleanupContext, deps Dependencies) (workflow.Workflow, error) {
	clock := deps.Clock
	if clock == nil {
		clock = workflow.SystemClock
	}

	switch c.WorkflowType {
	case models.WorkflowTypeStagedArchive:
		if deps.Effects.Reducer == nil {
			return nil, fmt.Errorf("staged archive %s: no traffic reducer configured", c.ConfigurationName)
		}

		return archive.New(c, deps.Effects.Reducer, archive.WithClock(clock)), nil
	case models.WorkflowTypeCodeReview:
		return codereview.New(c, codereview.WithClock(clock)), nil
	case models.WorkflowTypeTransform:
		if deps.Effects.Transformer == nil {
			return nil, fmt.Errorf("transform %s: no transformer configured", c.ConfigurationName)
		}

		return transform.New(c, deps.Effects.Transformer, transform.WithClock(clock)), nil
	default:
		return nil, fmt.Errorf("%w: %q", workflow.ErrUnknownWorkflowType, c.WorkflowType)
	}
}
