package repositories

import "context"

// Repository aggregates all per-domain repositories.
type Repository interface {
	// Identity domain
	User() UserRepository

	// Group domain
	Group() GroupRepository

	// Quiz domain
	Quiz() QuizRepository
	Question() QuestionRepository

	// Exam domain
	Session() SessionRepository
	Submission() SubmissionRepository
	Snapshot() SnapshotRepository

	// Audit domain
	Audit() AuditRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
