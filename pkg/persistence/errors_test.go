package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		notFound := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		duplicate := persistence.NewWorkflowError("Create", "workflow-123", persistence.ErrWorkflowAlreadyExists)

		assert.True(t, persistence.IsWorkflowNotFound(notFound))
		assert.False(t, persistence.IsWorkflowNotFound(duplicate))
		assert.True(t, persistence.IsWorkflowAlreadyExists(duplicate))
		assert.True(t, errors.Is(notFound, persistence.ErrWorkflowNotFound))
		assert.False(t, persistence.IsProjectNotFound(notFound))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Update", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "Update")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})
}
