package services

import (
	"context"
	"testing"
	"time"

	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/hashkey"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/models"
	"github.com/oneclick-dev/oneclick/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// keySequence hands out keys in order and repeats the last one.
func keySequence(calls *int, keys ...string) func() (string, error) {
	return func() (string, error) {
		key := keys[min(*calls, len(keys)-1)]
		*calls++
		return key, nil
	}
}

// beforeInsert runs fn once, right before the first INSERT of a *T, on the
// same connection or transaction as that INSERT. It stands in for a
// competing writer that wins the race between the pre-check and the insert.
func beforeInsert[T any](t *testing.T, conn *gorm.DB, fn func(tx *gorm.DB, row *T) error) {
	t.Helper()

	fired := false

	err := conn.Callback().Create().Before("gorm:create").Register("test:competing_insert", func(tx *gorm.DB) {
		row, ok := tx.Statement.Dest.(*T)

		if !ok || fired {
			return
		}

		fired = true

		if err := fn(tx.Session(&gorm.Session{NewDB: true}), row); err != nil {
			t.Errorf("competing insert: %v", err)
		}
	})

	require.NoError(t, err)
}

func insertUserRow(tx *gorm.DB, key, username, email string) error {
	now := time.Now()

	return tx.Exec(
		`INSERT INTO users (hashkey, username, email, verified_email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		key, username, email, false, now, now,
	).Error
}

func TestCreateUserSkipsTakenHashkey(t *testing.T) {
	ctx := context.Background()
	users := newUserDirectory(t)

	calls := 0
	users.newKey = keySequence(&calls, "aaaa0001")

	first, err := users.Create(ctx, NewUser{Email: "first@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "aaaa0001", first.Hashkey)

	calls = 0
	users.newKey = keySequence(&calls, "aaaa0001", "aaaa0002")

	second, err := users.Create(ctx, NewUser{Email: "second@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "aaaa0002", second.Hashkey)
	assert.Equal(t, 2, calls)
}

func TestCreateUserGivesUpWhenEveryKeyIsTaken(t *testing.T) {
	ctx := context.Background()
	users := newUserDirectory(t)

	calls := 0
	users.newKey = keySequence(&calls, "aaaa0001")

	_, err := users.Create(ctx, NewUser{Email: "first@example.com"})
	require.NoError(t, err)

	calls = 0

	_, err = users.Create(ctx, NewUser{Email: "second@example.com"})
	assert.ErrorIs(t, err, hashkey.ErrExhausted)
	assert.Equal(t, hashkey.MaxAttempts, calls)

	all, err := users.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateUserRetriesOnHashkeyConstraint(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewDB(t)
	users := NewUserDirectory(conn.Session(&gorm.Session{SkipDefaultTransaction: true}), logger.Nop())

	calls := 0
	users.newKey = keySequence(&calls, "aaaa0001", "aaaa0002")

	beforeInsert(t, conn, func(tx *gorm.DB, row *models.User) error {
		return insertUserRow(tx, row.Hashkey, "racer", "racer@example.com")
	})

	user, err := users.Create(ctx, NewUser{Email: "late@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "aaaa0002", user.Hashkey)

	racer, err := users.FindByHashkey(ctx, "aaaa0001")
	require.NoError(t, err)
	assert.Equal(t, "racer@example.com", racer.Email)
}

func TestUpsertRecoversFromConcurrentFirstLogin(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewDB(t)
	users := NewUserDirectory(conn.Session(&gorm.Session{SkipDefaultTransaction: true}), logger.Nop())

	beforeInsert(t, conn, func(tx *gorm.DB, row *models.User) error {
		return insertUserRow(tx, "bbbb0001", "racer", row.Email)
	})

	user, err := users.UpsertFromExternalIdentity(ctx, auth.ExternalIdentity{
		ID:    "google-9",
		Email: "Dana@Example.com",
		Name:  "Dana",
	})
	require.NoError(t, err)

	assert.Equal(t, "bbbb0001", user.Hashkey)
	assert.Equal(t, "racer", user.Username)
	assert.Equal(t, "Dana", user.Name)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "google-9", *user.GoogleID)

	byEmail, err := users.FindByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, byEmail.ID, user.ID)

	all, err := users.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateSurveySkipsTakenHashkey(t *testing.T) {
	ctx := context.Background()
	f := newSurveyFixture(t)
	owner := f.user(t, "owner@example.com")

	calls := 0
	f.surveys.newKey = keySequence(&calls, "cccc0001")

	first, err := f.surveys.CreateSurvey(ctx, NewSurvey{Title: "One", CreatorID: owner.ID, Questions: sampleQuestions()})
	require.NoError(t, err)
	assert.Equal(t, "cccc0001", first.Hashkey)

	calls = 0
	f.surveys.newKey = keySequence(&calls, "cccc0001", "cccc0002")

	second, err := f.surveys.CreateSurvey(ctx, NewSurvey{Title: "Two", CreatorID: owner.ID, Questions: sampleQuestions()})
	require.NoError(t, err)
	assert.Equal(t, "cccc0002", second.Hashkey)
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 4, f.count(t, &models.Question{}))
}

func TestCreateSurveyGivesUpWhenEveryKeyIsTaken(t *testing.T) {
	ctx := context.Background()
	f := newSurveyFixture(t)
	owner := f.user(t, "owner@example.com")

	calls := 0
	f.surveys.newKey = keySequence(&calls, "cccc0001")

	_, err := f.surveys.CreateSurvey(ctx, NewSurvey{Title: "One", CreatorID: owner.ID, Questions: sampleQuestions()})
	require.NoError(t, err)

	calls = 0

	_, err = f.surveys.CreateSurvey(ctx, NewSurvey{Title: "Two", CreatorID: owner.ID, Questions: sampleQuestions()})
	assert.ErrorIs(t, err, hashkey.ErrExhausted)
	assert.Equal(t, hashkey.MaxAttempts, calls)

	assert.EqualValues(t, 1, f.count(t, &models.Survey{}))
	assert.EqualValues(t, 2, f.count(t, &models.Question{}))
}

func TestCreateSurveyRerunsTransactionOnHashkeyConstraint(t *testing.T) {
	ctx := context.Background()
	f := newSurveyFixture(t)
	owner := f.user(t, "owner@example.com")

	calls := 0
	f.surveys.newKey = keySequence(&calls, "dddd0001", "dddd0002")

	beforeInsert(t, f.db, func(tx *gorm.DB, row *models.Survey) error {
		now := time.Now()

		return tx.Exec(
			`INSERT INTO surveys (hashkey, title, description, creator_id, is_active, generation, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			row.Hashkey, "Racer", "", owner.ID, true, "{}", now, now,
		).Error
	})

	survey, err := f.surveys.CreateSurvey(ctx, NewSurvey{Title: "Mine", CreatorID: owner.ID, Questions: sampleQuestions()})
	require.NoError(t, err)
	assert.Equal(t, "dddd0002", survey.Hashkey)
	assert.Equal(t, 2, calls)

	// The competing row lived in the failed transaction and was rolled back with it.
	assert.EqualValues(t, 1, f.count(t, &models.Survey{}))
	assert.EqualValues(t, 2, f.count(t, &models.Question{}))

	_, err = f.surveys.GetByHashkey(ctx, "dddd0001")
	assert.ErrorIs(t, err, ErrSurveyNotFound)

	fetched, err := f.surveys.GetByHashkey(ctx, "dddd0002")
	require.NoError(t, err)
	assert.Len(t, fetched.Questions, 2)
}
