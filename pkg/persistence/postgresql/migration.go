package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				organization_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused', 'archived')),
				steps JSONB NOT NULL DEFAULT '[]',
				engine_id VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);
			CREATE INDEX idx_workflows_status ON workflows(status);

			CREATE TABLE execution_records (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				external_execution_id VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'waiting_review', 'completed', 'failed', 'cancelled')),
				current_step_index INT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_records_workflow_id ON execution_records(workflow_id);
			CREATE UNIQUE INDEX idx_execution_records_external_id ON execution_records(external_execution_id)
				WHERE external_execution_id IS NOT NULL;

			CREATE TABLE review_requests (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL REFERENCES execution_records(id),
				step_id VARCHAR(255) NOT NULL,
				step_index INT NOT NULL DEFAULT 0,
				worker_name VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'edited')),
				action_payload JSONB NOT NULL DEFAULT '{}',
				reviewer_id VARCHAR(255),
				feedback TEXT,
				edited_data JSONB,
				reviewed_at TIMESTAMP WITH TIME ZONE,
				chat_history JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_review_requests_execution_id ON review_requests(execution_id);
			CREATE INDEX idx_review_requests_status ON review_requests(status);
		`,
	}
}
