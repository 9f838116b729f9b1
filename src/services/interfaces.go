package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/finlog/backend/src/model"
)

var (
	ErrParsingFailed    = errors.New("statement parsing failed")
	ErrProcessingFailed = errors.New("statement processing failed")
	ErrStorageFailed    = errors.New("statement archival failed")
)

// UploadResult reports what one accepted statement produced.
type UploadResult struct {
	UploadID              string `json:"uploadId"`
	ObjectKey             string `json:"key"`
	RowsParsed            int    `json:"rowsParsed"`
	TransactionsProcessed int64  `json:"transactionsProcessed"`
	DuplicatesSkipped     int64  `json:"duplicatesSkipped"`
}

// ReprocessResult reports a full rebuild from the object archive.
type ReprocessResult struct {
	FilesProcessed       int   `json:"filesProcessed"`
	FilesFailed          int   `json:"filesFailed"`
	TransactionsInserted int64 `json:"transactionsInserted"`
}

// TransactionPage is one page of the transaction listing.
type TransactionPage struct {
	Transactions []TransactionView `json:"transactions"`
	Page         int               `json:"page"`
	Limit        int               `json:"limit"`
	Total        int64             `json:"total"`
	TotalPages   int64             `json:"totalPages"`
}

// TransactionView is a transaction rendered for the API, amounts as
// two-decimal strings.
type TransactionView struct {
	ID          int64             `json:"id"`
	AccountType model.AccountType `json:"account"`
	Date        string            `json:"date"`
	Description string            `json:"description"`
	Amount      string            `json:"amount"`
	Balance     *string           `json:"balance,omitempty"`
}

// AccountSummary aggregates one account type.
type AccountSummary struct {
	AccountType model.AccountType `json:"account"`
	Inflow      string            `json:"inflow"`
	Outflow     string            `json:"outflow"`
	Net         string            `json:"net"`
	Count       int64             `json:"count"`
}

// Summary is the per-account and overall report.
type Summary struct {
	Accounts          []AccountSummary `json:"accounts"`
	TotalInflow       string           `json:"totalInflow"`
	TotalOutflow      string           `json:"totalOutflow"`
	Net               string           `json:"net"`
	Transactions      int64            `json:"transactions"`
	ReportingCurrency string           `json:"reportingCurrency"`
}

// TimeseriesPoint is one bucket of the inflow/outflow series.
type TimeseriesPoint struct {
	Period  string `json:"period"`
	Inflow  string `json:"inflow"`
	Outflow string `json:"outflow"`
}

// UploadService is the core statement pipeline: archive the raw file,
// normalize it, persist transactions, and serve the derived reports.
type UploadService interface {
	ProcessUpload(ctx context.Context, fileReader io.Reader, filename string, accountType model.AccountType, user *model.User) (*UploadResult, error)
	Reprocess(ctx context.Context, user *model.User) (*ReprocessResult, error)
	GetTransactions(userID int64, page, limit int) (*TransactionPage, error)
	GetSummary(userID int64) (*Summary, error)
	GetTimeseries(userID int64, period string, accounts []model.AccountType) ([]TimeseriesPoint, error)
	ListUploads(userID int64) ([]model.Upload, error)
	InvalidateUserCache(userID int64)
}
