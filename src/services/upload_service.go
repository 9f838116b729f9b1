package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/username/finlog/backend/src/database"
	"github.com/username/finlog/backend/src/ingest"
	"github.com/username/finlog/backend/src/logger"
	"github.com/username/finlog/backend/src/model"
	"github.com/username/finlog/backend/src/security/validation"
	"github.com/username/finlog/backend/src/storage"
)

const (
	ckSummary          = "res_summary_user_%d"
	ckTimeseriesPrefix = "res_timeseries_user_%d_"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type uploadServiceImpl struct {
	normalizer  *ingest.Normalizer
	store       storage.Store
	reportCache *cache.Cache
}

func NewUploadService(normalizer *ingest.Normalizer, store storage.Store, reportCache *cache.Cache) UploadService {
	return &uploadServiceImpl{
		normalizer:  normalizer,
		store:       store,
		reportCache: reportCache,
	}
}

// objectKey builds the archive key for an accepted statement. The date range
// comes from the file itself; files with no parseable dates land in a folder
// for the first of the current month.
func objectKey(userEmail string, accountType model.AccountType, rng *ingest.DateRange, filename string) string {
	start, end := rng.Start, rng.End
	return fmt.Sprintf("uploads/%s/%s/%s_to_%s/%s",
		userEmail, accountType,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		url.PathEscape(filename))
}

func fallbackDateRange() *ingest.DateRange {
	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return &ingest.DateRange{Start: first, End: first}
}

func (s *uploadServiceImpl) ProcessUpload(ctx context.Context, fileReader io.Reader, filename string, accountType model.AccountType, user *model.User) (*UploadResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "userID", user.ID, "account", accountType, "filename", filename)

	raw, err := io.ReadAll(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", ErrProcessingFailed, err)
	}

	rng := s.normalizer.DateRangeOf(raw)
	if rng == nil {
		rng = fallbackDateRange()
	}
	key := objectKey(user.Email, accountType, rng, filename)

	if err := s.store.Put(ctx, key, raw, "text/csv"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	records, err := s.normalizer.NormalizeTransactions(raw)
	if err != nil {
		// Double-wrap so callers can match both the sentinel and the typed
		// structural errors underneath it.
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}

	inserted, err := s.insertRecords(user.ID, accountType, records)
	if err != nil {
		return nil, err
	}

	up := &model.Upload{
		ID:                   uuid.NewString(),
		UserID:               user.ID,
		AccountType:          accountType,
		ObjectKey:            key,
		Filename:             filename,
		SizeBytes:            int64(len(raw)),
		TransactionsInserted: inserted,
		CreatedAt:            time.Now().UTC(),
	}
	if err := model.CreateUpload(database.DB, up); err != nil {
		return nil, fmt.Errorf("error recording upload: %w", err)
	}

	s.InvalidateUserCache(user.ID)

	logger.L.Info("ProcessUpload END", "userID", user.ID, "key", key,
		"rows", len(records), "inserted", inserted, "duration", time.Since(overallStartTime))
	return &UploadResult{
		UploadID:              up.ID,
		ObjectKey:             key,
		RowsParsed:            len(records),
		TransactionsProcessed: inserted,
		DuplicatesSkipped:     int64(len(records)) - inserted,
	}, nil
}

func (s *uploadServiceImpl) insertRecords(userID int64, accountType model.AccountType, records []ingest.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	account, err := model.GetOrCreateAccount(database.DB, userID, accountType)
	if err != nil {
		return 0, fmt.Errorf("error resolving account %s: %w", accountType, err)
	}

	txs := make([]model.Transaction, 0, len(records))
	for _, rec := range records {
		txs = append(txs, model.Transaction{
			UserID:      userID,
			AccountID:   account.ID,
			AccountType: accountType,
			Date:        rec.Date,
			Description: validation.StripUnprintable(rec.Description),
			Amount:      rec.Amount,
			Balance:     rec.Balance,
		})
	}
	return model.InsertTransactions(database.DB, txs)
}

// Reprocess wipes the user's transactions and rebuilds them from every CSV
// object archived under the user's prefix. Broken files are logged and
// skipped so one bad archive object cannot block the rebuild.
func (s *uploadServiceImpl) Reprocess(ctx context.Context, user *model.User) (*ReprocessResult, error) {
	logger.L.Info("Reprocess START", "userID", user.ID)

	deleted, err := model.DeleteTransactionsForUser(database.DB, user.ID)
	if err != nil {
		return nil, fmt.Errorf("error clearing transactions: %w", err)
	}
	logger.L.Info("Cleared existing transactions for rebuild", "userID", user.ID, "deleted", deleted)

	prefix := fmt.Sprintf("uploads/%s/", user.Email)
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: listing archive: %v", ErrStorageFailed, err)
	}

	result := &ReprocessResult{}
	for _, key := range keys {
		if !strings.HasSuffix(strings.ToLower(key), ".csv") {
			continue
		}
		accountType, ok := accountTypeFromKey(key)
		if !ok {
			logger.L.Warn("Skipping archive object with unknown account type", "key", key)
			continue
		}

		raw, err := s.store.Get(ctx, key)
		if err != nil {
			logger.L.Error("Failed to fetch archive object, skipping", "key", key, "error", err)
			result.FilesFailed++
			continue
		}

		records, err := s.normalizer.NormalizeTransactions(raw)
		if err != nil {
			logger.L.Error("Failed to normalize archive object, skipping", "key", key, "error", err)
			result.FilesFailed++
			continue
		}

		inserted, err := s.insertRecords(user.ID, accountType, records)
		if err != nil {
			logger.L.Error("Failed to insert archive object rows, skipping", "key", key, "error", err)
			result.FilesFailed++
			continue
		}

		result.FilesProcessed++
		result.TransactionsInserted += inserted
	}

	s.InvalidateUserCache(user.ID)

	logger.L.Info("Reprocess END", "userID", user.ID,
		"files", result.FilesProcessed, "failed", result.FilesFailed, "inserted", result.TransactionsInserted)
	return result, nil
}

// accountTypeFromKey pulls the account segment out of an archive key shaped
// uploads/<email>/<ACCOUNT>/<range>/<filename>.
func accountTypeFromKey(key string) (model.AccountType, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return "", false
	}
	return model.ParseAccountType(parts[2])
}

func (s *uploadServiceImpl) GetTransactions(userID int64, page, limit int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	total, err := model.CountTransactionsForUser(database.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting transactions: %w", err)
	}

	txs, err := model.ListTransactions(database.DB, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		view := TransactionView{
			ID:          tx.ID,
			AccountType: tx.AccountType,
			Date:        tx.Date.Format("2006-01-02"),
			Description: tx.Description,
			Amount:      tx.Amount.StringFixed(2),
		}
		if tx.Balance != nil {
			b := tx.Balance.StringFixed(2)
			view.Balance = &b
		}
		views = append(views, view)
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &TransactionPage{
		Transactions: views,
		Page:         page,
		Limit:        limit,
		Total:        total,
		TotalPages:   totalPages,
	}, nil
}

func (s *uploadServiceImpl) GetSummary(userID int64) (*Summary, error) {
	cacheKey := fmt.Sprintf(ckSummary, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if summary, ok := cached.(*Summary); ok {
			logger.L.Debug("Summary cache HIT", "userID", userID)
			return summary, nil
		}
	}

	txs, err := model.ListAllTransactionsForUser(database.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading transactions for summary: %w", err)
	}

	type bucket struct {
		inflow  decimal.Decimal
		outflow decimal.Decimal
		count   int64
	}
	buckets := make(map[model.AccountType]*bucket)
	for _, tx := range txs {
		b := buckets[tx.AccountType]
		if b == nil {
			b = &bucket{}
			buckets[tx.AccountType] = b
		}
		if tx.Amount.IsNegative() {
			b.outflow = b.outflow.Add(tx.Amount.Abs())
		} else {
			b.inflow = b.inflow.Add(tx.Amount)
		}
		b.count++
	}

	summary := &Summary{ReportingCurrency: s.normalizer.ReportingCurrency()}
	var totalIn, totalOut decimal.Decimal
	for _, accountType := range model.AccountTypes {
		b, ok := buckets[accountType]
		if !ok {
			continue
		}
		summary.Accounts = append(summary.Accounts, AccountSummary{
			AccountType: accountType,
			Inflow:      b.inflow.StringFixed(2),
			Outflow:     b.outflow.StringFixed(2),
			Net:         b.inflow.Sub(b.outflow).StringFixed(2),
			Count:       b.count,
		})
		totalIn = totalIn.Add(b.inflow)
		totalOut = totalOut.Add(b.outflow)
		summary.Transactions += b.count
	}
	summary.TotalInflow = totalIn.StringFixed(2)
	summary.TotalOutflow = totalOut.StringFixed(2)
	summary.Net = totalIn.Sub(totalOut).StringFixed(2)

	s.reportCache.Set(cacheKey, summary, DefaultCacheExpiration)
	return summary, nil
}

// GetTimeseries buckets the user's transactions by month, ISO week or
// quarter and returns the buckets oldest first.
func (s *uploadServiceImpl) GetTimeseries(userID int64, period string, accounts []model.AccountType) ([]TimeseriesPoint, error) {
	accountKeys := make([]string, 0, len(accounts))
	for _, a := range accounts {
		accountKeys = append(accountKeys, string(a))
	}
	sort.Strings(accountKeys)
	cacheKey := fmt.Sprintf(ckTimeseriesPrefix, userID) + period + "_" + strings.Join(accountKeys, ",")
	if cached, found := s.reportCache.Get(cacheKey); found {
		if points, ok := cached.([]TimeseriesPoint); ok {
			logger.L.Debug("Timeseries cache HIT", "userID", userID, "period", period)
			return points, nil
		}
	}

	txs, err := model.ListTransactionsByAccountTypes(database.DB, userID, accounts)
	if err != nil {
		return nil, fmt.Errorf("error loading transactions for timeseries: %w", err)
	}

	type bucket struct {
		inflow  decimal.Decimal
		outflow decimal.Decimal
	}
	buckets := make(map[string]*bucket)
	for _, tx := range txs {
		key := periodKey(period, tx.Date)
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		if tx.Amount.IsNegative() {
			b.outflow = b.outflow.Add(tx.Amount.Abs())
		} else {
			b.inflow = b.inflow.Add(tx.Amount)
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]TimeseriesPoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, TimeseriesPoint{
			Period:  k,
			Inflow:  buckets[k].inflow.StringFixed(2),
			Outflow: buckets[k].outflow.StringFixed(2),
		})
	}

	s.reportCache.Set(cacheKey, points, DefaultCacheExpiration)
	return points, nil
}

// periodKey formats a bucket label so lexical order equals chronological
// order within one period kind.
func periodKey(period string, date time.Time) string {
	switch period {
	case "week":
		year, week := date.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "quarter":
		quarter := (int(date.Month())-1)/3 + 1
		return fmt.Sprintf("%d-Q%d", date.Year(), quarter)
	default:
		return date.Format("2006-01")
	}
}

func (s *uploadServiceImpl) ListUploads(userID int64) ([]model.Upload, error) {
	return model.ListUploadsForUser(database.DB, userID)
}

// InvalidateUserCache clears all cached reports for a user, forcing a full
// rebuild on the next request.
func (s *uploadServiceImpl) InvalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckSummary, userID))

	prefix := fmt.Sprintf(ckTimeseriesPrefix, userID)
	for key := range s.reportCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reportCache.Delete(key)
		}
	}
	logger.L.Info("Invalidated all caches for user", "userID", userID)
}

// IsStructuralError reports whether an ingest failure should be surfaced to
// the client as a bad request rather than an internal error.
func IsStructuralError(err error) bool {
	var unrecognized *ingest.UnrecognizedFormatError
	var missing *ingest.MissingColumnError
	return errors.As(err, &unrecognized) || errors.As(err, &missing)
}
