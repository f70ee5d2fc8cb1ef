package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamevault/api-gateway/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Connect(ctx, Options{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

func createUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	u := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RoleUser,
		Status:       models.UserActive,
	}
	require.NoError(t, db.CreateUser(context.Background(), u, 1000))
	return u
}

func logAt(t *testing.T, db *DB, userID *uuid.UUID, status int, latency int64, at time.Time) {
	t.Helper()
	err := db.LogRequest(context.Background(), &models.RequestLog{
		UserID:         userID,
		Endpoint:       "/api/games",
		Method:         "GET",
		StatusCode:     status,
		ResponseTimeMs: latency,
		CreatedAt:      at,
	})
	require.NoError(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestCreateUserCreatesQuota(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@x.com")

	q, err := db.GetQuota(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), q.MonthlyLimit)
	assert.Equal(t, int64(0), q.CurrentUsage)

	got, err := db.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.RoleUser, got.Role)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "dup@x.com")

	err := db.CreateUser(context.Background(), &models.User{
		Name: "Other", Email: "dup@x.com", PasswordHash: "h",
		Role: models.RoleUser, Status: models.UserActive,
	}, 1000)
	assert.True(t, errors.Is(err, ErrConflict), "expected ErrConflict, got %v", err)

	n, err := db.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetUserNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "u@x.com")
	createUser(t, db, "taken@x.com")

	require.NoError(t, db.UpdateUserStatus(ctx, u.ID, models.UserSuspended))
	got, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserSuspended, got.Status)

	err = db.UpdateUser(ctx, u.ID, "taken@x.com", models.RoleAdmin, models.UserActive)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, db.UpdateUser(ctx, u.ID, "new@x.com", models.RoleAdmin, models.UserActive))
	got, err = db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Email)
	assert.Equal(t, models.RoleAdmin, got.Role)

	admins, err := db.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), admins)

	assert.ErrorIs(t, db.UpdateUserStatus(ctx, uuid.New(), models.UserActive), ErrNotFound)
}

func TestAPIKeyLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "k@x.com")

	key := &models.APIKey{UserID: u.ID, KeyHash: "hash-1", KeyPrefix: "gv_live_abcd"}
	require.NoError(t, db.CreateAPIKey(ctx, key))

	got, err := db.GetAPIKeyByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.Equal(t, models.KeyActive, got.Status)
	assert.Nil(t, got.LastUsed)

	require.NoError(t, db.SetAPIKeyStatus(ctx, key.ID, u.ID, models.KeyDisabled))
	require.NoError(t, db.ReplaceAPIKeyHash(ctx, key.ID, u.ID, "hash-2", "gv_live_efgh"))
	_, err = db.GetAPIKeyByHash(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = db.GetAPIKeyByHash(ctx, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID, "regenerate keeps the id")
	assert.Equal(t, models.KeyDisabled, got.Status)

	now := time.Now().UTC()
	require.NoError(t, db.TouchAPIKey(ctx, key.ID, now))
	got, err = db.GetAPIKeyByHash(ctx, "hash-2")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsed)
	assert.WithinDuration(t, now, *got.LastUsed, time.Second)

	require.NoError(t, db.RevokeAPIKey(ctx, key.ID, u.ID))
	assert.ErrorIs(t, db.SetAPIKeyStatus(ctx, key.ID, u.ID, models.KeyActive), ErrConflict)
	assert.ErrorIs(t, db.ReplaceAPIKeyHash(ctx, key.ID, u.ID, "hash-3", "gv_live_ijkl"), ErrConflict)

	other := createUser(t, db, "other@x.com")
	assert.ErrorIs(t, db.RevokeAPIKey(ctx, key.ID, other.ID), ErrNotFound)
	assert.ErrorIs(t, db.SetAPIKeyStatus(ctx, key.ID, other.ID, models.KeyActive), ErrNotFound)

	keys, err := db.ListUserAPIKeys(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, models.KeyRevoked, keys[0].Status)
}

func TestListUserAPIKeysCountsRequestsPerKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "c@x.com")
	k1 := &models.APIKey{UserID: u.ID, KeyHash: "h1", KeyPrefix: "p1"}
	k2 := &models.APIKey{UserID: u.ID, KeyHash: "h2", KeyPrefix: "p2"}
	require.NoError(t, db.CreateAPIKey(ctx, k1))
	require.NoError(t, db.CreateAPIKey(ctx, k2))

	for i := 0; i < 3; i++ {
		require.NoError(t, db.LogRequest(ctx, &models.RequestLog{
			UserID: &u.ID, APIKeyID: &k1.ID, Endpoint: "/api/games", Method: "GET", StatusCode: 200,
		}))
	}

	keys, err := db.ListUserAPIKeys(ctx, u.ID)
	require.NoError(t, err)
	counts := map[uuid.UUID]int64{}
	for _, k := range keys {
		counts[k.ID] = k.RequestCount
	}
	assert.Equal(t, int64(3), counts[k1.ID])
	assert.Equal(t, int64(0), counts[k2.ID])

	n, err := db.CountActiveAPIKeys(ctx, &u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := db.ListAllAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c@x.com", all[0].Email)
}

func TestQuotaReserveAndRelease(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "q@x.com")
	require.NoError(t, db.SetMonthlyLimit(ctx, u.ID, 2))

	ok, err := db.ReserveUsage(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.ReserveUsage(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.ReserveUsage(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok, "limit reached")

	require.NoError(t, db.ReleaseUsage(ctx, u.ID))
	q, err := db.GetQuota(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.CurrentUsage)
	assert.Equal(t, int64(1), q.Remaining())
}

func TestIncrementUsageConcurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "conc@x.com")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, db.IncrementUsage(ctx, u.ID))
		}()
	}
	wg.Wait()

	q, err := db.GetQuota(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), q.CurrentUsage)

	assert.ErrorIs(t, db.IncrementUsage(ctx, uuid.New()), ErrNotFound)
}

func TestLogTotalsEmpty(t *testing.T) {
	db := newTestDB(t)
	totals, err := db.LogTotals(context.Background(), LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, LogTotals{}, totals)
}

func TestLogTotalsAndBuckets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "b@x.com")
	day1 := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)

	logAt(t, db, &u.ID, 200, 100, day1)
	logAt(t, db, &u.ID, 404, 50, day1)
	logAt(t, db, &u.ID, 200, 30, day2)
	logAt(t, db, &u.ID, 302, 10, day2)
	logAt(t, db, nil, 500, 10, day2)

	totals, err := db.LogTotals(ctx, LogFilter{UserID: &u.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals.Requests)
	assert.Equal(t, int64(2), totals.Successes)
	assert.Equal(t, int64(1), totals.Redirects)
	assert.Equal(t, int64(1), totals.Errors)
	assert.InDelta(t, 47.5, totals.AvgLatencyMs, 0.001)

	desc, err := db.DailyBuckets(ctx, LogFilter{UserID: &u.ID}, Descending, 7)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, "2026-03-02", desc[0].Bucket)
	assert.Equal(t, "2026-03-01", desc[1].Bucket)
	assert.Equal(t, int64(2), desc[1].Requests)
	assert.Equal(t, int64(1), desc[1].Successes)
	assert.InDelta(t, 75, desc[1].AvgLatencyMs, 0.001)

	asc, err := db.DailyBuckets(ctx, LogFilter{UserID: &u.ID}, Ascending, 1)
	require.NoError(t, err)
	require.Len(t, asc, 1)
	assert.Equal(t, "2026-03-01", asc[0].Bucket)

	since, err := db.DailyBuckets(ctx, LogFilter{Since: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}, Ascending, 0)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, int64(3), since[0].Requests)

	hours, err := db.HourlyBuckets(ctx, LogFilter{}, Ascending, 0)
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, "2026-03-01 10:00:00", hours[0].Bucket)
	assert.Equal(t, "2026-03-02 23:00:00", hours[1].Bucket)
}

func TestStatusCountsAndTopEndpoints(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, code := range []int{200, 200, 200, 404, 500} {
		logAt(t, db, nil, code, 5, now)
	}
	require.NoError(t, db.LogRequest(ctx, &models.RequestLog{
		Endpoint: "/api/games/1", Method: "DELETE", StatusCode: 404, CreatedAt: now.Add(-48 * time.Hour),
	}))

	counts, err := db.StatusCounts(ctx, LogFilter{})
	require.NoError(t, err)
	byCode := map[int]int64{}
	for _, c := range counts {
		byCode[c.StatusCode] = c.Count
	}
	assert.Equal(t, map[int]int64{200: 3, 404: 2, 500: 1}, byCode)

	top, err := db.TopEndpoints(ctx, LogFilter{Since: now.Add(-24 * time.Hour)}, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, EndpointCount{Method: "GET", Endpoint: "/api/games", Count: 5}, top[0])
}

func TestQueryUserLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "f@x.com")
	day := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	logAt(t, db, &u.ID, 200, 1, day)
	logAt(t, db, &u.ID, 404, 1, day)
	logAt(t, db, &u.ID, 200, 1, day.Add(24*time.Hour))

	logs, err := db.QueryUserLogs(ctx, LogQuery{
		UserID: u.ID,
		From:   time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC),
		Limit:  50,
	})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = db.QueryUserLogs(ctx, LogQuery{UserID: u.ID, Status: 404, Limit: 50})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 404, logs[0].StatusCode)

	codes, err := db.DistinctStatusCodes(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{200, 404}, codes)

	page, err := db.ListUserLogs(ctx, u.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt) || page[0].CreatedAt.Equal(page[1].CreatedAt))
}

func TestRecentLogsJoinsEmail(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db, "r@x.com")
	now := time.Now().UTC()
	logAt(t, db, &u.ID, 200, 1, now)
	logAt(t, db, nil, 401, 1, now.Add(time.Second))

	logs, err := db.RecentLogs(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Nil(t, logs[0].Email)
	require.NotNil(t, logs[1].Email)
	assert.Equal(t, "r@x.com", *logs[1].Email)
}

func TestGamesCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	endpoint := "/api/games/zelda"
	zelda := &models.Game{Title: "Zelda", Genre: "Adventure", Platform: "Switch", Rating: 4.9,
		APIEndpoint: &endpoint, Status: models.GameAvailable}
	doom := &models.Game{Title: "Doom", Genre: "Action", Platform: "PC", Status: models.GameUnavailable}
	require.NoError(t, db.CreateGame(ctx, zelda))
	require.NoError(t, db.CreateGame(ctx, doom))

	all, err := db.ListGames(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Doom", all[0].Title)

	found, err := db.ListGames(ctx, "adven")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, zelda.ID, found[0].ID)

	explorable, err := db.ListExplorableGames(ctx)
	require.NoError(t, err)
	require.Len(t, explorable, 1)
	assert.Equal(t, endpoint, *explorable[0].APIEndpoint)

	doom.Rating = 4.2
	require.NoError(t, db.UpdateGame(ctx, doom))
	got, err := db.GetGame(ctx, doom.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.2, got.Rating, 0.0001)

	require.NoError(t, db.DeleteGame(ctx, doom.ID))
	assert.ErrorIs(t, db.DeleteGame(ctx, doom.ID), ErrNotFound)
	_, err = db.GetGame(ctx, doom.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateGame(ctx, doom), ErrNotFound)

	n, err := db.CountGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWeeklySignups(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "w1@x.com")
	createUser(t, db, "w2@x.com")

	weeks, err := db.WeeklySignups(context.Background(), time.Now().UTC().Add(-28*24*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, weeks)
	var total int64
	for _, w := range weeks {
		assert.Contains(t, w.Bucket, "Week ")
		total += w.Requests
	}
	assert.Equal(t, int64(2), total)
}

func TestWeekBucketUsesISOWeeks(t *testing.T) {
	db := newTestDB(t)
	cases := map[string]string{
		"2026-06-15 12:00:00": "Week 25",
		"2027-01-01 12:00:00": "Week 53",
		"2026-01-01 00:00:00": "Week 01",
	}
	for at, want := range cases {
		var got string
		require.NoError(t, db.conn.GetContext(context.Background(), &got, "SELECT "+db.dialect.weekBucket("?"), at))
		assert.Equal(t, want, got, at)
	}
}

func TestWithParams(t *testing.T) {
	assert.Equal(t, "u:p@/db?parseTime=true", withParams("u:p@/db", "parseTime=true"))
	assert.Equal(t, "u:p@/db?x=1&parseTime=true", withParams("u:p@/db?x=1", "parseTime=true"))
	assert.Equal(t, "u:p@/db?parseTime=true", withParams("u:p@/db?parseTime=true", "parseTime=true"))
}

func TestDialectForUnknownDriver(t *testing.T) {
	_, err := dialectFor("oracle")
	assert.Error(t, err)
}
