package services

import (
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/workflow/codeupdate"
)

// CodeUpdateHost is the host for the code update family.
type CodeUpdateHost = Host[models.CodeUpdateRequest, *models.CodeUpdateContext, *codeupdate.Workflow]

// NewCodeUpdateHost creates the code update family host around provider.
func NewCodeUpdateHost(
	repo persistence.WorkflowRepository,
	provider Provider[models.CodeUpdateRequest, *models.CodeUpdateContext, *codeupdate.Workflow],
	opts ...Option,
) *CodeUpdateHost {
	return NewHost(repo, provider, opts...)
}
