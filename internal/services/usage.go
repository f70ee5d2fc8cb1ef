package services

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/models"
)

// UsageStore is the read side of the store the aggregator works from.
type UsageStore interface {
	LogTotals(ctx context.Context, f database.LogFilter) (database.LogTotals, error)
	CountLogs(ctx context.Context, f database.LogFilter) (int64, error)
	DailyBuckets(ctx context.Context, f database.LogFilter, order database.Order, limit int) ([]database.Bucket, error)
	HourlyBuckets(ctx context.Context, f database.LogFilter, order database.Order, limit int) ([]database.Bucket, error)
	StatusCounts(ctx context.Context, f database.LogFilter) ([]database.StatusCount, error)
	TopEndpoints(ctx context.Context, f database.LogFilter, limit int) ([]database.EndpointCount, error)
	WeeklySignups(ctx context.Context, since time.Time) ([]database.Bucket, error)
	ListUserLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RequestLog, error)
	QueryUserLogs(ctx context.Context, q database.LogQuery) ([]models.RequestLog, error)
	DistinctStatusCodes(ctx context.Context, userID uuid.UUID) ([]int, error)
	RecentLogs(ctx context.Context, limit int) ([]database.LogWithEmail, error)
	GetQuota(ctx context.Context, userID uuid.UUID) (*models.Quota, error)
	CountActiveAPIKeys(ctx context.Context, userID *uuid.UUID) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountGames(ctx context.Context) (int64, error)
	ListExplorableGames(ctx context.Context) ([]models.Game, error)
}

// Aggregator computes usage views from the raw request log on demand.
// Nothing is cached or pre-aggregated.
type Aggregator struct {
	store UsageStore
	now   func() time.Time
}

func NewAggregator(store UsageStore) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

const (
	dailyRows        = 7
	trendRows        = 8
	defaultHistory   = 7
	maxHistory       = 365
	defaultPageSize  = 10
	maxPageSize      = 100
	usageChartDays   = 30
	usageRecentRows  = 50
	adminUsageDays   = 7
	adminSignupWeeks = 4
	recentLogRows    = 50
	topEndpointRows  = 10
)

// percent returns part/total*100 rounded to one decimal, 0 when total is 0.
func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}

func roundMs(v float64) int64 {
	return int64(math.Round(v))
}

// today returns the start of the current UTC calendar day.
func (a *Aggregator) today() time.Time {
	return a.now().UTC().Truncate(24 * time.Hour)
}

// ---------------------------------------------------------------------------
// Self-service views
// ---------------------------------------------------------------------------

type QuotaView struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

type Summary struct {
	TotalRequests   int64     `json:"total_requests"`
	AvgResponseTime int64     `json:"avg_response_time"`
	SuccessRate     float64   `json:"success_rate"`
	Quota           QuotaView `json:"quota"`
}

func (a *Aggregator) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	totals, err := a.store.LogTotals(ctx, database.LogFilter{UserID: &userID})
	if err != nil {
		return nil, internal("usage summary", err)
	}
	quota, err := a.quota(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		TotalRequests:   totals.Requests,
		AvgResponseTime: roundMs(totals.AvgLatencyMs),
		SuccessRate:     percent(totals.Successes, totals.Requests),
		Quota:           QuotaView{Used: quota.CurrentUsage, Limit: quota.MonthlyLimit},
	}, nil
}

// quota treats a missing quota row as an empty allowance.
func (a *Aggregator) quota(ctx context.Context, userID uuid.UUID) (*models.Quota, error) {
	q, err := a.store.GetQuota(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return &models.Quota{UserID: userID}, nil
	}
	if err != nil {
		return nil, internal("load quota", err)
	}
	return q, nil
}

type DailyUsage struct {
	Date        string  `json:"date"`
	Requests    int64   `json:"requests"`
	AvgResponse int64   `json:"avg_response"`
	SuccessRate float64 `json:"success_rate"`
}

// Daily returns the most recent active days, newest first.
func (a *Aggregator) Daily(ctx context.Context, userID uuid.UUID) ([]DailyUsage, error) {
	buckets, err := a.store.DailyBuckets(ctx, database.LogFilter{UserID: &userID}, database.Descending, dailyRows)
	if err != nil {
		return nil, internal("daily usage", err)
	}
	out := make([]DailyUsage, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, DailyUsage{
			Date:        b.Bucket,
			Requests:    b.Requests,
			AvgResponse: roundMs(b.AvgLatencyMs),
			SuccessRate: percent(b.Successes, b.Requests),
		})
	}
	return out, nil
}

type TrendPoint struct {
	Date     string `json:"date"`
	Requests int64  `json:"requests"`
}

// Trend returns the first active days in ascending order.
func (a *Aggregator) Trend(ctx context.Context, userID uuid.UUID) ([]TrendPoint, error) {
	buckets, err := a.store.DailyBuckets(ctx, database.LogFilter{UserID: &userID}, database.Ascending, trendRows)
	if err != nil {
		return nil, internal("usage trend", err)
	}
	out := make([]TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, TrendPoint{Date: b.Bucket, Requests: b.Requests})
	}
	return out, nil
}

// DateCount is one day, hour or week with a request count.
type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type History struct {
	Range         string      `json:"range"`
	TotalRequests int64       `json:"totalRequests"`
	Daily         []DateCount `json:"daily"`
}

// NormalizeHistoryDays maps absent or invalid values to the default window
// and caps the rest.
func NormalizeHistoryDays(days int) int {
	if days <= 0 {
		return defaultHistory
	}
	return min(days, maxHistory)
}

// History counts requests per UTC day from the start of today minus days.
func (a *Aggregator) History(ctx context.Context, userID uuid.UUID, days int) (*History, error) {
	days = NormalizeHistoryDays(days)
	since := a.today().AddDate(0, 0, -days)
	daily, err := a.dateCounts(ctx, database.LogFilter{UserID: &userID, Since: since})
	if err != nil {
		return nil, internal("usage history", err)
	}
	var total int64
	for _, d := range daily {
		total += d.Count
	}
	return &History{
		Range:         formatRange(days),
		TotalRequests: total,
		Daily:         daily,
	}, nil
}

func formatRange(days int) string {
	return strconv.Itoa(days) + "_days"
}

func (a *Aggregator) dateCounts(ctx context.Context, f database.LogFilter) ([]DateCount, error) {
	buckets, err := a.store.DailyBuckets(ctx, f, database.Ascending, 0)
	if err != nil {
		return nil, err
	}
	out := make([]DateCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, DateCount{Date: b.Bucket, Count: b.Requests})
	}
	return out, nil
}

type Dashboard struct {
	TotalRequests  int64  `json:"total_requests"`
	ActiveAPIKeys  int64  `json:"active_api_keys"`
	RemainingQuota int64  `json:"remaining_quota"`
	APIStatus      string `json:"api_status"`
}

func (a *Aggregator) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	total, err := a.store.CountLogs(ctx, database.LogFilter{UserID: &userID})
	if err != nil {
		return nil, internal("count requests", err)
	}
	keys, err := a.store.CountActiveAPIKeys(ctx, &userID)
	if err != nil {
		return nil, internal("count api keys", err)
	}
	quota, err := a.quota(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		TotalRequests:  total,
		ActiveAPIKeys:  keys,
		RemainingQuota: quota.Remaining(),
		APIStatus:      "Operational",
	}, nil
}

// LogEntry is a request log row as shown to its owner.
type LogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	StatusCode   int       `json:"statusCode"`
	ResponseTime int64     `json:"responseTime"`
}

func toLogEntries(logs []models.RequestLog) []LogEntry {
	out := make([]LogEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, LogEntry{
			Timestamp:    l.CreatedAt,
			Endpoint:     l.Endpoint,
			Method:       l.Method,
			StatusCode:   l.StatusCode,
			ResponseTime: l.ResponseTimeMs,
		})
	}
	return out
}

type LogPage struct {
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Total int64      `json:"total"`
	Data  []LogEntry `json:"data"`
}

// Logs pages through a user's log, newest first.
func (a *Aggregator) Logs(ctx context.Context, userID uuid.UUID, page, limit int) (*LogPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	logs, err := a.store.ListUserLogs(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, internal("list logs", err)
	}
	total, err := a.store.CountLogs(ctx, database.LogFilter{UserID: &userID})
	if err != nil {
		return nil, internal("count logs", err)
	}
	return &LogPage{Page: page, Limit: limit, Total: total, Data: toLogEntries(logs)}, nil
}

// UsageFilter narrows the recent-requests list of the usage view. Zero
// values are ignored.
type UsageFilter struct {
	Date   time.Time
	Status int
}

type UsageView struct {
	ChartData            []DateCount `json:"chartData"`
	RecentRequests       []LogEntry  `json:"recentRequests"`
	AvailableStatusCodes []int       `json:"availableStatusCodes"`
}

func (a *Aggregator) Usage(ctx context.Context, userID uuid.UUID, filter UsageFilter) (*UsageView, error) {
	since := a.today().AddDate(0, 0, -usageChartDays)
	chart, err := a.dateCounts(ctx, database.LogFilter{UserID: &userID, Since: since})
	if err != nil {
		return nil, internal("usage chart", err)
	}

	codes, err := a.store.DistinctStatusCodes(ctx, userID)
	if err != nil {
		return nil, internal("status codes", err)
	}

	q := database.LogQuery{UserID: userID, Status: filter.Status, Limit: usageRecentRows}
	if !filter.Date.IsZero() {
		day := filter.Date.UTC().Truncate(24 * time.Hour)
		q.From, q.To = day, day.AddDate(0, 0, 1)
	}
	recent, err := a.store.QueryUserLogs(ctx, q)
	if err != nil {
		return nil, internal("recent requests", err)
	}

	return &UsageView{
		ChartData:            chart,
		RecentRequests:       toLogEntries(recent),
		AvailableStatusCodes: codes,
	}, nil
}

type ExploreItem struct {
	Title       string  `json:"title"`
	APIEndpoint *string `json:"api_endpoint"`
	Genre       string  `json:"genre"`
	Platform    string  `json:"platform"`
}

// Explore lists the catalog items that expose an API.
func (a *Aggregator) Explore(ctx context.Context) ([]ExploreItem, error) {
	games, err := a.store.ListExplorableGames(ctx)
	if err != nil {
		return nil, internal("explore", err)
	}
	out := make([]ExploreItem, 0, len(games))
	for _, g := range games {
		out = append(out, ExploreItem{Title: g.Title, APIEndpoint: g.APIEndpoint, Genre: g.Genre, Platform: g.Platform})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Admin views
// ---------------------------------------------------------------------------

type AdminDashboard struct {
	TotalUsers    int64       `json:"totalUsers"`
	ActiveAPIKeys int64       `json:"activeApiKeys"`
	TotalRequests int64       `json:"totalRequests"`
	TotalGames    int64       `json:"totalGames"`
	UsageData     []DateCount `json:"usageData"`
	UserData      []DateCount `json:"userData"`
}

func (a *Aggregator) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	var d AdminDashboard
	var err error
	if d.TotalUsers, err = a.store.CountUsers(ctx); err != nil {
		return nil, internal("count users", err)
	}
	if d.ActiveAPIKeys, err = a.store.CountActiveAPIKeys(ctx, nil); err != nil {
		return nil, internal("count api keys", err)
	}
	if d.TotalRequests, err = a.store.CountLogs(ctx, database.LogFilter{}); err != nil {
		return nil, internal("count requests", err)
	}
	if d.TotalGames, err = a.store.CountGames(ctx); err != nil {
		return nil, internal("count games", err)
	}

	today := a.today()
	if d.UsageData, err = a.dateCounts(ctx, database.LogFilter{Since: today.AddDate(0, 0, -adminUsageDays)}); err != nil {
		return nil, internal("usage chart", err)
	}
	weeks, err := a.store.WeeklySignups(ctx, today.AddDate(0, 0, -7*adminSignupWeeks))
	if err != nil {
		return nil, internal("signup chart", err)
	}
	d.UserData = make([]DateCount, 0, len(weeks))
	for _, w := range weeks {
		d.UserData = append(d.UserData, DateCount{Date: w.Bucket, Count: w.Requests})
	}
	return &d, nil
}

type MonitoringStats struct {
	RequestsPerMin  int64   `json:"requestsPerMin"`
	AvgResponseTime int64   `json:"avgResponseTime"`
	SuccessRate     float64 `json:"successRate"`
	ErrorRate       float64 `json:"errorRate"`
	TotalRequests   int64   `json:"totalRequests"`
}

func (a *Aggregator) MonitoringStats(ctx context.Context) (*MonitoringStats, error) {
	totals, err := a.store.LogTotals(ctx, database.LogFilter{})
	if err != nil {
		return nil, internal("monitoring totals", err)
	}
	perMin, err := a.store.CountLogs(ctx, database.LogFilter{Since: a.now().Add(-time.Minute)})
	if err != nil {
		return nil, internal("requests per minute", err)
	}
	return &MonitoringStats{
		RequestsPerMin:  perMin,
		AvgResponseTime: roundMs(totals.AvgLatencyMs),
		SuccessRate:     percent(totals.Successes, totals.Requests),
		ErrorRate:       percent(totals.Errors, totals.Requests),
		TotalRequests:   totals.Requests,
	}, nil
}

// Status categories of the distribution view.
const (
	CategoryOK          = "200 OK"
	CategoryRedirect    = "300 Redirect"
	CategoryNotFound    = "404 Not Found"
	CategoryClientError = "4xx Client Error"
	CategoryServerError = "500 Server Error"
	CategoryOther       = "Other"
)

// StatusCategory maps a status code to its distribution category.
func StatusCategory(code int) string {
	switch {
	case code >= 200 && code <= 299:
		return CategoryOK
	case code >= 300 && code <= 399:
		return CategoryRedirect
	case code == 404:
		return CategoryNotFound
	case code >= 400 && code <= 499:
		return CategoryClientError
	case code >= 500 && code <= 599:
		return CategoryServerError
	default:
		return CategoryOther
	}
}

type StatusShare struct {
	Category   string  `json:"category"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// StatusDistribution groups the whole log by status category. Only
// non-empty categories are returned, largest first.
func (a *Aggregator) StatusDistribution(ctx context.Context) ([]StatusShare, error) {
	counts, err := a.store.StatusCounts(ctx, database.LogFilter{})
	if err != nil {
		return nil, internal("status distribution", err)
	}

	byCategory := map[string]int64{}
	var total int64
	for _, c := range counts {
		byCategory[StatusCategory(c.StatusCode)] += c.Count
		total += c.Count
	}

	out := make([]StatusShare, 0, len(byCategory))
	for category, n := range byCategory {
		out = append(out, StatusShare{Category: category, Count: n, Percentage: percent(n, total)})
	}
	slices.SortFunc(out, func(x, y StatusShare) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Category, y.Category)
	})
	return out, nil
}

// TopEndpoints ranks endpoints over the trailing 24 hours.
func (a *Aggregator) TopEndpoints(ctx context.Context) ([]database.EndpointCount, error) {
	out, err := a.store.TopEndpoints(ctx, database.LogFilter{Since: a.now().Add(-24 * time.Hour)}, topEndpointRows)
	if err != nil {
		return nil, internal("top endpoints", err)
	}
	return out, nil
}

type HourCount struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

// Volume counts requests per hour over the trailing 24 hours.
func (a *Aggregator) Volume(ctx context.Context) ([]HourCount, error) {
	buckets, err := a.lastDayHours(ctx)
	if err != nil {
		return nil, internal("request volume", err)
	}
	out := make([]HourCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, HourCount{Hour: b.Bucket, Count: b.Requests})
	}
	return out, nil
}

type HourLatency struct {
	Hour            string `json:"hour"`
	AvgResponseTime int64  `json:"avg_response_time"`
}

// ResponseTime averages latency per hour over the trailing 24 hours.
func (a *Aggregator) ResponseTime(ctx context.Context) ([]HourLatency, error) {
	buckets, err := a.lastDayHours(ctx)
	if err != nil {
		return nil, internal("response time trend", err)
	}
	out := make([]HourLatency, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, HourLatency{Hour: b.Bucket, AvgResponseTime: roundMs(b.AvgLatencyMs)})
	}
	return out, nil
}

func (a *Aggregator) lastDayHours(ctx context.Context) ([]database.Bucket, error) {
	return a.store.HourlyBuckets(ctx, database.LogFilter{Since: a.now().Add(-24 * time.Hour)}, database.Ascending, 0)
}

type LogStats struct {
	TotalLogs    int64 `json:"total_logs"`
	SuccessCount int64 `json:"success_count"`
	ErrorCount   int64 `json:"error_count"`
	WarningCount int64 `json:"warning_count"`
}

func (a *Aggregator) LogStats(ctx context.Context) (*LogStats, error) {
	t, err := a.store.LogTotals(ctx, database.LogFilter{})
	if err != nil {
		return nil, internal("log stats", err)
	}
	return &LogStats{
		TotalLogs:    t.Requests,
		SuccessCount: t.Successes,
		ErrorCount:   t.Errors,
		WarningCount: t.Redirects,
	}, nil
}

// RecentLogs returns the newest log entries across all users.
func (a *Aggregator) RecentLogs(ctx context.Context) ([]database.LogWithEmail, error) {
	logs, err := a.store.RecentLogs(ctx, recentLogRows)
	if err != nil {
		return nil, internal("recent logs", err)
	}
	return logs, nil
}
