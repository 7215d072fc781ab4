package archive

import (
	"fmt"

	"github.com/dukex/cleanup/pkg/models"
)

// CurrentStatus describes the workflow for display.
func (w *Workflow) CurrentStatus() string {
	c := w.Context()
	stage := c.StageSet.CurrentStage()

	switch w.State() {
	case models.StateCreated:
		return "Ready to start"
	case models.StateCompleted:
		return fmt.Sprintf("Archived %s", c.ConfigurationName)
	case models.StateFailed:
		return "Failed: " + c.ErrorMessage
	}

	if stage == nil {
		return "All stages completed"
	}

	switch w.State() {
	case models.StateAwaitingUserAction:
		if stage.Status == models.StageStatusWaiting && stage.NeedsReduction() {
			return fmt.Sprintf("Stage %s at %d%%, ready for final reduction to %d%%",
				stage.Name, stage.CurrentAllocation, stage.TargetAllocation)
		}

		return fmt.Sprintf("Stage %s at %d%%, ready to reduce toward %d%%",
			stage.Name, stage.CurrentAllocation, stage.TargetAllocation)
	case models.StateInProgress:
		return fmt.Sprintf("Reducing traffic on stage %s", stage.Name)
	case models.StateWaiting:
		deadline, _ := stage.WaitDeadline()

		return fmt.Sprintf("Stage %s at %d%%, waiting until %s",
			stage.Name, stage.CurrentAllocation, deadline.Format("2006-01-02 15:04:05 MST"))
	default:
		return string(w.State())
	}
}

// Progress reports completed stages over total stages.
func (w *Workflow) Progress() models.Progress {
	c := w.Context()
	total := 0

	if c.StageSet != nil {
		total = len(c.StageSet.Stages)
	}

	completed := c.StageSet.CompletedCount()
	progress := models.Progress{
		Step:        completed,
		TotalSteps:  total,
		Description: w.CurrentStatus(),
	}

	if total > 0 {
		progress.Percent = float64(completed) / float64(total) * 100
	}

	if w.IsInState(models.StateAwaitingUserAction) {
		progress.RequiresManualAction = true

		if stage := c.StageSet.CurrentStage(); stage != nil {
			progress.ManualActionDescription = fmt.Sprintf("Proceed with stage %s", stage.Name)
		} else {
			progress.ManualActionDescription = "Proceed to complete the archive"
		}
	}

	return progress
}
