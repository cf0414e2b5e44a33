package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oneclick-dev/oneclick/db"
	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/hashkey"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")

	errHashkeyTaken  = errors.New("hashkey already in use")
	errIdentityTaken = errors.New("identity already registered")
)

type NewUser struct {
	Email         string
	Username      string
	GoogleID      *string
	Name          string
	Picture       string
	VerifiedEmail bool
}

// UserUpdate holds the mutable profile fields. Nil fields are left unchanged.
type UserUpdate struct {
	Username      *string
	GoogleID      *string
	Name          *string
	Picture       *string
	VerifiedEmail *bool
}

type UserDirectory struct {
	db     *gorm.DB
	log    *logger.Logger
	newKey func() (string, error)
}

func NewUserDirectory(conn *gorm.DB, log *logger.Logger) *UserDirectory {
	return &UserDirectory{db: conn, log: log.With("service", "UserDirectory"), newKey: hashkey.Generate}
}

// UpsertFromExternalIdentity links a provider login to a user record: first by
// provider id, then by email, otherwise a new user is created. A concurrent
// first login that wins the insert race is picked up by a second lookup.
func (d *UserDirectory) UpsertFromExternalIdentity(ctx context.Context, identity auth.ExternalIdentity) (*models.User, error) {
	identity.Email = normalizeEmail(identity.Email)

	if identity.Email == "" {
		return nil, auth.ErrMissingUserInfo
	}

	user, err := d.updateExisting(ctx, identity)

	if err == nil {
		return user, nil
	}

	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	var googleID *string

	if identity.ID != "" {
		googleID = &identity.ID
	}

	user, err = d.Create(ctx, NewUser{
		Email:         identity.Email,
		Username:      GenerateUsername(identity.Name, identity.Email),
		GoogleID:      googleID,
		Name:          identity.Name,
		Picture:       identity.Picture,
		VerifiedEmail: identity.VerifiedEmail,
	})

	if errors.Is(err, errIdentityTaken) {
		d.log.Info("user created concurrently, retrying lookup", "google_id", identity.ID)
		return d.updateExisting(ctx, identity)
	}

	return user, err
}

func (d *UserDirectory) updateExisting(ctx context.Context, identity auth.ExternalIdentity) (*models.User, error) {
	if identity.ID != "" {
		user, err := d.FindByGoogleID(ctx, identity.ID)

		if err == nil {
			return d.applyUpdates(ctx, user.ID, map[string]interface{}{
				"name":           identity.Name,
				"picture":        identity.Picture,
				"verified_email": identity.VerifiedEmail,
			})
		}

		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	user, err := d.FindByEmail(ctx, identity.Email)

	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":           identity.Name,
		"picture":        identity.Picture,
		"verified_email": identity.VerifiedEmail,
	}

	if identity.ID != "" {
		updates["google_id"] = identity.ID
	}

	return d.applyUpdates(ctx, user.ID, updates)
}

// Create inserts a user with a fresh hashkey, regenerating it on collision.
// A taken username gets a random suffix.
func (d *UserDirectory) Create(ctx context.Context, in NewUser) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)

	if in.Email == "" {
		return nil, fmt.Errorf("create user: email is required")
	}

	if in.Username == "" {
		in.Username = GenerateUsername(in.Name, in.Email)
	}

	var created *models.User

	err := hashkey.WithRetryFrom(d.newKey, isKeyCollision, func(key string) error {
		taken, err := d.exists(ctx, "hashkey = ?", key)

		if err != nil {
			return err
		}

		if taken {
			return errHashkeyTaken
		}

		username, err := d.availableUsername(ctx, in.Username)

		if err != nil {
			return err
		}

		user := models.User{
			Hashkey:       key,
			Username:      username,
			Email:         in.Email,
			GoogleID:      in.GoogleID,
			Name:          in.Name,
			Picture:       in.Picture,
			VerifiedEmail: in.VerifiedEmail,
		}

		if err := d.db.WithContext(ctx).Create(&user).Error; err != nil {
			if !db.IsUniqueViolation(err) {
				return err
			}

			identityTaken, lookupErr := d.identityExists(ctx, in.Email, in.GoogleID)

			if lookupErr != nil {
				return lookupErr
			}

			if identityTaken {
				return errIdentityTaken
			}

			return errHashkeyTaken
		}

		created = &user
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	d.log.Info("user created", "id", created.ID, "hashkey", created.Hashkey)

	return created, nil
}

func (d *UserDirectory) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return d.first(ctx, "id = ?", id)
}

func (d *UserDirectory) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return d.first(ctx, "google_id = ?", googleID)
}

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return d.first(ctx, "email = ?", normalizeEmail(email))
}

func (d *UserDirectory) FindByHashkey(ctx context.Context, key string) (*models.User, error) {
	if !hashkey.Valid(key) {
		return nil, ErrUserNotFound
	}
	return d.first(ctx, "hashkey = ?", key)
}

// Update applies a partial update. An empty update returns the current record.
func (d *UserDirectory) Update(ctx context.Context, id uint, in UserUpdate) (*models.User, error) {
	updates := make(map[string]interface{})

	if in.Username != nil {
		updates["username"] = strings.TrimSpace(*in.Username)
	}

	if in.GoogleID != nil {
		updates["google_id"] = *in.GoogleID
	}

	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}

	if in.Picture != nil {
		updates["picture"] = *in.Picture
	}

	if in.VerifiedEmail != nil {
		updates["verified_email"] = *in.VerifiedEmail
	}

	if len(updates) == 0 {
		return d.FindByID(ctx, id)
	}

	return d.applyUpdates(ctx, id, updates)
}

// Delete hard-deletes a user and, through foreign keys, their surveys.
func (d *UserDirectory) Delete(ctx context.Context, id uint) (bool, error) {
	result := d.db.WithContext(ctx).Delete(&models.User{}, id)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (d *UserDirectory) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User

	query := d.db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset)

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}

	return users, nil
}

func (d *UserDirectory) applyUpdates(ctx context.Context, id uint, updates map[string]interface{}) (*models.User, error) {
	result := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return d.FindByID(ctx, id)
}

func (d *UserDirectory) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User

	err := d.db.WithContext(ctx).Where(query, args...).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

func (d *UserDirectory) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64

	if err := d.db.WithContext(ctx).Model(&models.User{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (d *UserDirectory) identityExists(ctx context.Context, email string, googleID *string) (bool, error) {
	if googleID != nil && *googleID != "" {
		taken, err := d.exists(ctx, "google_id = ?", *googleID)

		if err != nil || taken {
			return taken, err
		}
	}

	return d.exists(ctx, "email = ?", email)
}

func (d *UserDirectory) availableUsername(ctx context.Context, base string) (string, error) {
	candidate := base

	for attempt := 0; attempt < hashkey.MaxAttempts; attempt++ {
		taken, err := d.exists(ctx, "username = ?", candidate)

		if err != nil {
			return "", err
		}

		if !taken {
			return candidate, nil
		}

		suffix, err := hashkey.Generate()

		if err != nil {
			return "", err
		}

		candidate = base + "_" + suffix[:4]
	}

	return candidate, nil
}

func isKeyCollision(err error) bool {
	return errors.Is(err, errHashkeyTaken)
}

// GenerateUsername derives a handle from the display name, falling back to the
// email local part and finally to "user".
func GenerateUsername(name, email string) string {
	fromName := sanitizeUsername(strings.Join(strings.Fields(strings.ToLower(name)), "_"), false)

	if len(fromName) >= 3 {
		return fromName
	}

	local, _, _ := strings.Cut(strings.ToLower(email), "@")

	if fromEmail := sanitizeUsername(local, true); fromEmail != "" {
		return fromEmail
	}

	return "user"
}

// sanitizeUsername keeps [a-z0-9_]. Other characters are dropped, or replaced
// with "_" when replace is set.
func sanitizeUsername(s string, replace bool) string {
	var b strings.Builder

	for _, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case replace:
			b.WriteRune('_')
		}
	}

	return b.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
