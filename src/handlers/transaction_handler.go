package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/finlog/backend/src/logger"
	"github.com/username/finlog/backend/src/model"
	"github.com/username/finlog/backend/src/services"
	"github.com/username/finlog/backend/src/utils"
)

type TransactionHandler struct {
	uploadService services.UploadService
}

func NewTransactionHandler(service services.UploadService) *TransactionHandler {
	return &TransactionHandler{uploadService: service}
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.uploadService.GetTransactions(userID, page, limit)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if result.Transactions == nil {
		result.Transactions = []services.TransactionView{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error encoding transactions response", "userID", userID, "error", err)
	}
}

func (h *TransactionHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	summary, err := h.uploadService.GetSummary(userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error building summary for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	etag, err := utils.GenerateETag(summary)
	if err != nil {
		logger.L.Error("Failed to generate ETag for summary", "userID", userID, "error", err)
	} else {
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error encoding summary response", "userID", userID, "error", err)
	}
}

func (h *TransactionHandler) HandleGetTimeseries(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	period := r.URL.Query().Get("period")
	switch period {
	case "", "month":
		period = "month"
	case "week", "quarter":
	default:
		utils.SendJSONError(w, fmt.Sprintf("Unknown period %q. Valid periods: month, week, quarter", period), http.StatusBadRequest)
		return
	}

	accounts, err := parseAccountsParam(r.URL.Query().Get("accounts"))
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.uploadService.GetTimeseries(userID, period, accounts)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error building timeseries for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []services.TimeseriesPoint{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(points); err != nil {
		logger.L.Error("Error encoding timeseries response", "userID", userID, "error", err)
	}
}

// parseAccountsParam resolves the accounts query parameter: empty or "ALL"
// means every account type; otherwise a CSV list where unknown names are
// dropped. A list with no valid entries is an error so a typo cannot silently
// return an empty report.
func parseAccountsParam(raw string) ([]model.AccountType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "ALL") {
		return model.AccountTypes, nil
	}

	var accounts []model.AccountType
	for _, part := range strings.Split(raw, ",") {
		if accountType, ok := model.ParseAccountType(strings.TrimSpace(part)); ok {
			accounts = append(accounts, accountType)
		}
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no valid account types in %q. Valid types: %v", raw, model.AccountTypes)
	}
	return accounts, nil
}
