package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_projections (
				id VARCHAR(255) PRIMARY KEY,
				display_name VARCHAR(255) NOT NULL,
				workflow_type VARCHAR(50) NOT NULL,
				state VARCHAR(50) NOT NULL,
				context JSONB NOT NULL,
				metadata JSONB,
				history JSONB NOT NULL DEFAULT '[]',
				error_message TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_projections_type ON workflow_projections(workflow_type);
			CREATE INDEX idx_workflow_projections_state ON workflow_projections(state);
			CREATE INDEX idx_workflow_projections_created_at ON workflow_projections(created_at);
		`,
		2: `
			CREATE TABLE projects (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				items JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_projects_created_at ON projects(created_at);
		`,
	}
}
