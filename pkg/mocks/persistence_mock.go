package mocks

import (
	"context"

	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	args := m.Called()

	return args.Get(0).(persistence.WorkflowRepository)
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	args := m.Called()

	return args.Get(0).(persistence.ExecutionRepository)
}

func (m *MockPersistence) KnowledgeRepository() persistence.KnowledgeRepository {
	args := m.Called()

	return args.Get(0).(persistence.KnowledgeRepository)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Update(ctx context.Context, id string, update models.ExecutionUpdate) error {
	args := m.Called(ctx, id, update)

	return args.Error(0)
}

func (m *MockExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockExecutionRepository) CreateLog(ctx context.Context, log *models.ExecutionLog) (string, error) {
	args := m.Called(ctx, log)

	return args.String(0), args.Error(1)
}

func (m *MockExecutionRepository) UpdateLog(ctx context.Context, id string, update models.LogUpdate) error {
	args := m.Called(ctx, id, update)

	return args.Error(0)
}

func (m *MockExecutionRepository) ListLogs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLog), args.Error(1)
}

// MockKnowledgeRepository is a mock implementation of persistence.KnowledgeRepository interface.
type MockKnowledgeRepository struct {
	mock.Mock
}

func (m *MockKnowledgeRepository) Search(ctx context.Context, embedding []float64, topK int) ([]knowledge.Match, error) {
	args := m.Called(ctx, embedding, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]knowledge.Match), args.Error(1)
}

func (m *MockKnowledgeRepository) SaveChunks(ctx context.Context, chunks []knowledge.Chunk) error {
	args := m.Called(ctx, chunks)

	return args.Error(0)
}
