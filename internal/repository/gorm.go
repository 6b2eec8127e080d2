package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
	"wealthsync/internal/pagination"
)

// Encryptor seals credential columns. A nil Encryptor stores them as given.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Option configures the gorm repository.
type Option func(*gormRepository)

// WithEncryptor encrypts credential columns at rest.
func WithEncryptor(enc Encryptor) Option {
	return func(r *gormRepository) { r.enc = enc }
}

// WithClock overrides the clock used for last_sync stamps.
func WithClock(now func() time.Time) Option {
	return func(r *gormRepository) { r.now = now }
}

// gormRepository implements Repository over *gorm.DB.
type gormRepository struct {
	db  *gorm.DB
	enc Encryptor
	now func() time.Time
}

// New creates a Repository backed by db.
func New(db *gorm.DB, opts ...Option) Repository {
	r := &gormRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *gormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx, enc: r.enc, now: r.now})
	})
}

func (r *gormRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := r.conn(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := r.open(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.conn(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return r.openAll(accounts)
}

func (r *gormRepository) ListConnectedAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.conn(ctx).
		Where("is_connected = ? AND provider <> ?", true, models.ProviderManual).
		Order("last_sync ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return r.openAll(accounts)
}

func (r *gormRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	sealed := *account
	sealed.Holdings, sealed.Activities = nil, nil
	if err := r.seal(&sealed); err != nil {
		return err
	}
	if err := r.conn(ctx).Create(&sealed).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	account.Base = sealed.Base
	return nil
}

func (r *gormRepository) UpdateAccount(ctx context.Context, id string, update AccountUpdate) (*models.Account, error) {
	fields := map[string]interface{}{
		"last_sync": r.now(),
	}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.AccountType != nil {
		fields["account_type"] = *update.AccountType
	}
	if update.Balance != nil {
		fields["balance"] = update.Balance.Round(2)
	}
	if update.IsConnected != nil {
		fields["is_connected"] = *update.IsConnected
	}
	if update.Credentials != nil {
		c := *update.Credentials
		access, err := r.encrypt(c.AccessToken)
		if err != nil {
			return nil, err
		}
		refresh, err := r.encrypt(c.RefreshToken)
		if err != nil {
			return nil, err
		}
		secret, err := r.encrypt(c.TokenSecret)
		if err != nil {
			return nil, err
		}
		fields["access_token"] = access
		fields["refresh_token"] = refresh
		fields["token_secret"] = secret
		fields["token_expiry"] = c.Expiry
	}
	if update.Ref != nil {
		fields["account_id_key"] = update.Ref.AccountIDKey
		fields["external_account_id"] = update.Ref.ExternalAccountID
	}

	result := r.conn(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrAccountNotFound
	}
	return r.GetAccount(ctx, id)
}

func (r *gormRepository) DeleteAccount(ctx context.Context, id string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.Holding{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Activity{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.LinkSession{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Account{})
		if result.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrAccountNotFound
		}
		return nil
	})
}

func (r *gormRepository) GetHoldingsByAccount(ctx context.Context, accountID string) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := r.conn(ctx).Where("account_id = ?", accountID).Order("symbol ASC").Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holdings, nil
}

func (r *gormRepository) CreateHolding(ctx context.Context, holding *models.Holding) error {
	if err := r.conn(ctx).Create(holding).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (r *gormRepository) UpdateHolding(ctx context.Context, id string, update HoldingUpdate) error {
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Shares != nil {
		fields["shares"] = update.Shares.Round(4)
	}
	if update.CurrentPrice != nil {
		fields["current_price"] = update.CurrentPrice.Round(2)
	}
	if update.TotalValue != nil {
		fields["total_value"] = update.TotalValue.Round(2)
	}
	if update.Category != nil {
		fields["category"] = *update.Category
	}
	if update.ChangePercent != nil {
		fields["change_percent"] = update.ChangePercent.Round(2)
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.conn(ctx).Model(&models.Holding{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrHoldingNotFound
	}
	return nil
}

func (r *gormRepository) DeleteHolding(ctx context.Context, id string) error {
	result := r.conn(ctx).Where("id = ?", id).Delete(&models.Holding{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrHoldingNotFound
	}
	return nil
}

func (r *gormRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	if err := r.conn(ctx).Create(activity).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (r *gormRepository) GetActivitiesByAccount(ctx context.Context, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.Activity], error) {
	page.Defaults()

	base := r.conn(ctx).Model(&models.Activity{}).Where("account_id = ?", accountID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var activities []models.Activity
	err := r.conn(ctx).Where("account_id = ?", accountID).
		Order("timestamp DESC").Order("id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&activities).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(activities, page, total)
	return &resp, nil
}

func (r *gormRepository) CreateLinkSession(ctx context.Context, session *models.LinkSession) error {
	sealed := *session
	secret, err := r.encrypt(sealed.RequestSecret)
	if err != nil {
		return err
	}
	sealed.RequestSecret = secret
	if err := r.conn(ctx).Create(&sealed).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	session.Base = sealed.Base
	return nil
}

func (r *gormRepository) GetLinkSession(ctx context.Context, id string) (*models.LinkSession, error) {
	var session models.LinkSession
	if err := r.conn(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLinkSessionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	secret, err := r.decrypt(session.RequestSecret)
	if err != nil {
		return nil, err
	}
	session.RequestSecret = secret
	return &session, nil
}

func (r *gormRepository) DeleteLinkSession(ctx context.Context, id string) error {
	if err := r.conn(ctx).Where("id = ?", id).Delete(&models.LinkSession{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (r *gormRepository) DeleteExpiredLinkSessions(ctx context.Context, now time.Time) (int64, error) {
	result := r.conn(ctx).Where("expires_at <= ?", now).Delete(&models.LinkSession{})
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormRepository) ListRealEstate(ctx context.Context, userID string) ([]models.RealEstateInvestment, error) {
	var out []models.RealEstateInvestment
	if err := r.conn(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&out).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return out, nil
}

func (r *gormRepository) ListVentures(ctx context.Context, userID string) ([]models.VentureInvestment, error) {
	var out []models.VentureInvestment
	if err := r.conn(ctx).Where("user_id = ?", userID).Order("company_name ASC").Find(&out).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return out, nil
}

func (r *gormRepository) seal(a *models.Account) error {
	var err error
	if a.AccessToken, err = r.encrypt(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = r.encrypt(a.RefreshToken); err != nil {
		return err
	}
	a.TokenSecret, err = r.encrypt(a.TokenSecret)
	return err
}

func (r *gormRepository) open(a *models.Account) error {
	var err error
	if a.AccessToken, err = r.decrypt(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = r.decrypt(a.RefreshToken); err != nil {
		return err
	}
	a.TokenSecret, err = r.decrypt(a.TokenSecret)
	return err
}

func (r *gormRepository) openAll(accounts []models.Account) ([]models.Account, error) {
	for i := range accounts {
		if err := r.open(&accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (r *gormRepository) encrypt(v string) (string, error) {
	if r.enc == nil || v == "" {
		return v, nil
	}
	out, err := r.enc.Encrypt(v)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("encrypt credential: %w", err))
	}
	return out, nil
}

func (r *gormRepository) decrypt(v string) (string, error) {
	if r.enc == nil || v == "" {
		return v, nil
	}
	out, err := r.enc.Decrypt(v)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("decrypt credential: %w", err))
	}
	return out, nil
}
