package scheduler

import (
	"context"
	"fmt"
	"time"

	"wealthsync/internal/models"
	"wealthsync/internal/repository"
	"wealthsync/internal/syncer"
)

// Job is a unit of work run by the worker pool.
type Job interface {
	// Execute runs the job. ctx carries the per-job timeout.
	Execute(ctx context.Context) error
	// Subject names what the job operates on, for logs and spans.
	Subject() string
	Description() string
}

// Syncer is the part of the orchestrator jobs depend on.
type Syncer interface {
	Sync(ctx context.Context, accountID string) (*syncer.Result, error)
}

// AccountSyncJob syncs one connected account.
type AccountSyncJob struct {
	account models.Account
	syncer  Syncer
}

// NewAccountSyncJob creates a sync job for account.
func NewAccountSyncJob(account models.Account, s Syncer) *AccountSyncJob {
	return &AccountSyncJob{account: account, syncer: s}
}

func (j *AccountSyncJob) Execute(ctx context.Context) error {
	_, err := j.syncer.Sync(ctx, j.account.ID)
	return err
}

func (j *AccountSyncJob) Subject() string { return j.account.ID }

func (j *AccountSyncJob) Description() string {
	return fmt.Sprintf("%s account sync", j.account.Provider)
}

// LinkSessionCleanupJob removes link sessions past their expiry.
type LinkSessionCleanupJob struct {
	repo repository.Repository
	now  func() time.Time
}

// NewLinkSessionCleanupJob creates a cleanup job.
func NewLinkSessionCleanupJob(repo repository.Repository) *LinkSessionCleanupJob {
	return &LinkSessionCleanupJob{repo: repo, now: time.Now}
}

func (j *LinkSessionCleanupJob) Execute(ctx context.Context) error {
	_, err := j.repo.DeleteExpiredLinkSessions(ctx, j.now().UTC())
	return err
}

func (j *LinkSessionCleanupJob) Subject() string { return "link_sessions" }

func (j *LinkSessionCleanupJob) Description() string { return "expired link session cleanup" }

// ConnectedAccountJobs returns a job provider that syncs every connected
// account and sweeps expired link sessions.
func ConnectedAccountJobs(repo repository.Repository, s Syncer) func(context.Context) ([]Job, error) {
	return func(ctx context.Context) ([]Job, error) {
		accounts, err := repo.ListConnectedAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list connected accounts: %w", err)
		}
		jobs := make([]Job, 0, len(accounts)+1)
		for _, a := range accounts {
			jobs = append(jobs, NewAccountSyncJob(a, s))
		}
		jobs = append(jobs, NewLinkSessionCleanupJob(repo))
		return jobs, nil
	}
}
