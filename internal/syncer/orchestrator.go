// Package syncer runs account synchronization end to end: credential check,
// provider fetch, normalization, reconciliation and the audit entry.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"wealthsync/internal/credentials"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/lock"
	"wealthsync/internal/logger"
	"wealthsync/internal/models"
	"wealthsync/internal/normalize"
	"wealthsync/internal/providers"
	"wealthsync/internal/repository"
)

var (
	tracer          = otel.Tracer("wealthsync/syncer")
	meter           = otel.Meter("wealthsync/syncer")
	syncTotal, _    = meter.Int64Counter("sync.total", metric.WithDescription("Account syncs by provider and outcome"))
	syncDuration, _ = meter.Float64Histogram("sync.duration", metric.WithDescription("Account sync duration in seconds"), metric.WithUnit("s"))
)

// DefaultConcurrency bounds SyncMany when no limit is configured.
const DefaultConcurrency = 4

// Orchestrator is the only writer of holdings and sync activities.
type Orchestrator struct {
	repo        repository.Repository
	registry    *providers.Registry
	credentials *credentials.Manager
	locker      lock.Locker
	concurrency int
}

// NewOrchestrator creates an orchestrator. concurrency bounds SyncMany.
func NewOrchestrator(repo repository.Repository, registry *providers.Registry, creds *credentials.Manager, locker lock.Locker, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		repo:        repo,
		registry:    registry,
		credentials: creds,
		locker:      locker,
		concurrency: concurrency,
	}
}

// Sync brings one account in line with its provider. Every call on an
// existing account writes exactly one activity; an unknown id writes none.
// The returned error is also stored in Result.Err.
func (o *Orchestrator) Sync(ctx context.Context, accountID string) (*Result, error) {
	return o.attempt(ctx, accountID, nil)
}

// attempt runs one sync under the account's sync lock. store, when set,
// writes link credentials after the lock is taken and before the reload.
func (o *Orchestrator) attempt(ctx context.Context, accountID string, store func(context.Context) error) (*Result, error) {
	ctx, span := tracer.Start(ctx, "sync.account", trace.WithAttributes(attribute.String("account.id", accountID)))
	defer span.End()

	start := time.Now()
	result := newResult(accountID)
	provider := models.Provider("")
	outcome := OutcomeSuccess

	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("provider", string(provider)),
			attribute.String("outcome", string(outcome)),
		)
		syncTotal.Add(ctx, 1, attrs)
		syncDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.SetAttributes(
			attribute.String("sync.state", string(result.State)),
			attribute.String("sync.outcome", string(outcome)),
		)
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
	}()

	account, err := o.repo.GetAccount(ctx, accountID)
	if err != nil {
		outcome = OutcomeNotFound
		if apperrors.KindOf(err) != apperrors.KindNotFound {
			outcome = OutcomeFailed
		}
		return result, result.fail(err)
	}
	provider = account.Provider
	span.SetAttributes(attribute.String("provider", string(provider)))
	log := logger.ForAccount(accountID, string(provider))

	unlock, ok, err := o.locker.TryLock(ctx, "sync:"+accountID)
	if err != nil {
		err = apperrors.Wrap(apperrors.ErrInternalServer, err)
	} else if !ok {
		err = apperrors.ErrSyncInProgress
	}
	if err != nil {
		outcome = OutcomeConflict
		if apperrors.KindOf(err) != apperrors.KindConflict {
			outcome = OutcomeFailed
		}
		result.fail(err)
		o.recordFailure(ctx, account, result)
		return result, err
	}
	defer unlock()

	if store != nil {
		if err := store(ctx); err != nil {
			outcome = OutcomeFailed
			result.fail(err)
			o.recordFailure(ctx, account, result)
			return result, err
		}
	}

	// Reload under the lock; a sync or refresh may have just finished.
	reloaded, err := o.repo.GetAccount(ctx, accountID)
	if err != nil {
		outcome = OutcomeFailed
		result.fail(err)
		o.recordFailure(ctx, account, result)
		return result, err
	}
	account = reloaded

	if err := o.run(ctx, account, result); err != nil {
		outcome = OutcomeFailed
		if apperrors.KindOf(err) == apperrors.KindAuth {
			result.Disconnected = o.clearCredentials(ctx, accountID) == nil
			outcome = OutcomeDisconnected
		}
		o.recordFailure(ctx, account, result)
		log.Warnw("Sync failed",
			"state", result.Transitions[len(result.Transitions)-2],
			"kind", apperrors.KindOf(err),
			"error", err,
		)
		return result, err
	}

	log.Infow("Sync completed",
		"inserted", result.Inserted,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"balance", result.Balance.StringFixed(2),
		"duration", time.Since(start),
	)
	return result, nil
}

// run walks the state machine from credential_check to done.
func (o *Orchestrator) run(ctx context.Context, account *models.Account, result *Result) error {
	result.enter(StateCredentialCheck)
	creds, err := o.credentials.EnsureValid(ctx, account)
	if err != nil {
		return result.fail(err)
	}

	result.enter(StateFetching)
	adapter, err := o.registry.Get(account.Provider)
	if err != nil {
		return result.fail(err)
	}
	remote, err := adapter.FetchAccounts(ctx, creds)
	if err != nil {
		return result.fail(err)
	}
	selected, err := providers.SelectAccount(account.Provider, remote, account.Ref())
	if err != nil {
		return result.fail(err)
	}
	ref := mergeRef(account.Ref(), selected.Ref())
	positions, err := adapter.FetchPositions(ctx, creds, ref)
	if err != nil {
		return result.fail(err)
	}

	result.enter(StateNormalizing)
	normalized, err := normalize.Normalize(selected, positions)
	if err != nil {
		return result.fail(err)
	}
	ref = mergeRef(ref, normalized.Ref)

	result.enter(StateReconciling)
	connected := true
	balance := normalized.Balance
	plan, err := reconcile(ctx, o.repo, account.ID, normalized.Holdings, repository.AccountUpdate{
		Balance:     &balance,
		IsConnected: &connected,
		Ref:         &ref,
	})
	if err != nil {
		return result.fail(err)
	}
	result.Inserted = len(plan.Insert)
	result.Updated = len(plan.Update)
	result.Deleted = len(plan.Delete)
	result.Unchanged = plan.Unchanged
	result.Balance = balance

	result.enter(StateLogging)
	if err := o.repo.CreateActivity(ctx, syncActivity(account.ID, result)); err != nil {
		return result.fail(err)
	}
	result.enter(StateDone)
	return nil
}

// recordFailure writes the single error activity for a failed attempt. It
// runs detached from ctx so a cancelled request still leaves its entry.
func (o *Orchestrator) recordFailure(ctx context.Context, account *models.Account, result *Result) {
	ctx = context.WithoutCancel(ctx)
	activity := &models.Activity{
		AccountID:   account.ID,
		Type:        models.ActivityError,
		Description: failureDescription(account.Provider, result.Err),
	}
	if err := o.repo.CreateActivity(ctx, activity); err != nil {
		logger.ForAccount(account.ID, string(account.Provider)).Errorw("Failed to record sync error", "error", err)
	}
}

// clearCredentials revokes credentials from inside a sync that already holds
// the account lock.
func (o *Orchestrator) clearCredentials(ctx context.Context, accountID string) error {
	err := o.credentials.Revoke(context.WithoutCancel(ctx), accountID)
	if err != nil {
		logger.Get().Errorw("Failed to disconnect account", "account_id", accountID, "error", err)
	}
	return err
}

// Connect stores credentials from a completed link flow and runs the first
// sync. Both happen under the account's sync lock, so a link that collides
// with a running sync fails with ErrSyncInProgress and stores nothing.
func (o *Orchestrator) Connect(ctx context.Context, accountID string, creds models.Credentials, ref models.AccountRef) (*Result, error) {
	if !creds.Present() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "credentials must include an access token")
	}
	return o.attempt(ctx, accountID, func(ctx context.Context) error {
		_, err := o.credentials.Store(ctx, accountID, creds, ref)
		return err
	})
}

// Revoke clears the account's credentials on user request. It fails with
// ErrSyncInProgress while a sync holds the account.
func (o *Orchestrator) Revoke(ctx context.Context, accountID string) error {
	unlock, ok, err := o.locker.TryLock(ctx, "sync:"+accountID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !ok {
		return apperrors.ErrSyncInProgress
	}
	defer unlock()

	if err := o.credentials.Revoke(ctx, accountID); err != nil {
		return err
	}
	logger.Get().Infow("Account disconnected", "account_id", accountID)
	return nil
}

// SyncMany syncs accounts concurrently. Failures are reported per account in
// the results, which keep the order of accountIDs.
func (o *Orchestrator) SyncMany(ctx context.Context, accountIDs []string) []*Result {
	results := make([]*Result, len(accountIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, id := range accountIDs {
		g.Go(func() error {
			res, _ := o.Sync(gctx, id)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func syncActivity(accountID string, result *Result) *models.Activity {
	return &models.Activity{
		AccountID: accountID,
		Type:      models.ActivitySync,
		Description: fmt.Sprintf("Synced holdings: %d added, %d updated, %d removed",
			result.Inserted, result.Updated, result.Deleted),
		Amount: decimal.NewNullDecimal(result.Balance),
	}
}

// failureDescription is user-visible; AppError messages never carry provider
// payloads.
func failureDescription(provider models.Provider, err error) string {
	msg := apperrors.ErrInternalServer.Message
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindAuth:
		return fmt.Sprintf("Sync failed, %s authorization revoked: %s", provider, msg)
	case apperrors.KindConflict:
		return "Sync skipped: " + msg
	default:
		return "Sync failed: " + msg
	}
}

// mergeRef overlays identifiers reported by the provider on the stored ones.
func mergeRef(stored, reported models.AccountRef) models.AccountRef {
	if reported.AccountIDKey != "" {
		stored.AccountIDKey = reported.AccountIDKey
	}
	if reported.ExternalAccountID != "" {
		stored.ExternalAccountID = reported.ExternalAccountID
	}
	return stored
}
