package postgresql

import "github.com/dukex/nodeflow/pkg/persistence/sqlbase"

// migrationLockKey is the advisory lock id serializing schema upgrades.
const migrationLockKey int64 = 0x6e6f6465666c6f77

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{Version: 1, Name: "workflow definitions", SQL: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				version VARCHAR(64) NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_nodes (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				node_type VARCHAR(50) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				config JSONB,
				inputs JSONB,
				outputs JSONB,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_type ON workflow_nodes(node_type);

			CREATE TABLE workflow_edges (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				position INT NOT NULL,
				id VARCHAR(255) NOT NULL DEFAULT '',
				source_id VARCHAR(255) NOT NULL,
				target_id VARCHAR(255) NOT NULL,
				edge_type VARCHAR(20) NOT NULL DEFAULT 'default',
				edge_condition TEXT NOT NULL DEFAULT '',
				source_handle VARCHAR(255) NOT NULL DEFAULT '',
				target_handle VARCHAR(255) NOT NULL DEFAULT '',
				PRIMARY KEY (workflow_id, position)
			);

			CREATE INDEX idx_workflow_edges_source ON workflow_edges(workflow_id, source_id);
			CREATE INDEX idx_workflow_edges_target ON workflow_edges(workflow_id, target_id);
		`},
		{Version: 2, Name: "executions and logs", SQL: `
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				user_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'running', 'completed', 'failed', 'cancelled', 'awaiting')),
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				input_data JSONB NOT NULL DEFAULT '{}',
				variables JSONB NOT NULL DEFAULT '{}',
				output_data JSONB,
				error TEXT NOT NULL DEFAULT '',
				current_node_id VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_created_at ON executions(created_at);

			CREATE TABLE execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				node_type VARCHAR(50) NOT NULL,
				status VARCHAR(20) NOT NULL,
				input JSONB,
				output JSONB,
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT
			);

			CREATE INDEX idx_execution_logs_execution_id ON execution_logs(execution_id, started_at);
		`},
		{Version: 3, Name: "knowledge chunks", SQL: `
			CREATE TABLE knowledge_chunks (
				id VARCHAR(255) PRIMARY KEY,
				document_id VARCHAR(255) NOT NULL DEFAULT '',
				content TEXT NOT NULL,
				metadata JSONB,
				embedding DOUBLE PRECISION[] NOT NULL
			);

			CREATE INDEX idx_knowledge_chunks_document_id ON knowledge_chunks(document_id);
		`},
	}
}
