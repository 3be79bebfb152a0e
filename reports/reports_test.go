package reports

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	appconfig "Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var at = time.Date(2025, 4, 2, 15, 30, 0, 0, time.UTC)

func TestItemsPDF(t *testing.T) {
	items := []models.Item{
		{ID: "1", Code: "LP-100", Name: "Laptop", Category: "Electronics", Status: models.ItemAvailable, Location: "Shelf A"},
		{ID: "2", Code: "CH-7", Name: "Silla ergonómica", Category: "Furniture", Status: models.ItemOnLoan},
	}

	out, err := ItemsPDF(items, at)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	empty, err := ItemsPDF(nil, at)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF-")))
}

func TestInventoryStatusPDF(t *testing.T) {
	sum := InventorySummary{
		GeneratedAt: at,
		TotalItems:  4,
		ByStatus: map[models.ItemStatus]int64{
			models.ItemAvailable:   2,
			models.ItemOnLoan:      1,
			models.ItemMaintenance: 1,
		},
		TotalLoans:   3,
		ActiveLoans:  1,
		PendingLoans: 1,
	}
	assert.InDelta(t, 50.0, sum.Percent(models.ItemAvailable), 0.001)
	assert.InDelta(t, 0.0, sum.Percent(models.ItemDecommissioned), 0.001)
	assert.Zero(t, InventorySummary{}.Percent(models.ItemAvailable))

	out, err := InventoryStatusPDF(sum)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestLoansExcel(t *testing.T) {
	loans := []models.Loan{
		{ID: "l1", Status: models.LoanPending, RequestDate: at,
			User: &models.User{Name: "Ana"}, Item: &models.Item{Name: "Laptop"}},
		{ID: "l2", Status: models.LoanReturned, RequestDate: at},
	}

	out, err := LoansExcel(loans)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Loans")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "User", "Item", "Status", "Request Date"}, rows[0])
	assert.Equal(t, []string{"l1", "Ana", "Laptop", "Pending", "2025-04-02 15:30"}, rows[1])
	assert.Equal(t, "Unknown", rows[2][1], "missing user renders as Unknown")
}

func TestUserActivityExcel(t *testing.T) {
	logs := []models.AuditLog{
		{ActionDate: at, ActionBy: "ana@example.com", Action: models.ActionLogin, Table: models.UserTable},
	}
	out, err := UserActivityExcel(logs, at.AddDate(0, 0, -7), at)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Activity")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Date", "User", "Action", "Table", "Description"}, rows[0])
	assert.Equal(t, "ana@example.com", rows[1][1])
	assert.Equal(t, "LOGIN", rows[1][2])

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "User activity 2025-03-26 to 2025-04-02", props.Title)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestS3ArchivePut(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		ctype  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path, ctype = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	archive, err := NewS3Archive(context.Background(), appconfig.S3Config{
		Bucket:    "reports-bucket",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)

	require.NoError(t, archive.Put(context.Background(), "reports/items/20250402.pdf", []byte("%PDF-1.3"), ContentTypePDF))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/reports-bucket/reports/items/20250402.pdf", path)
	assert.Equal(t, ContentTypePDF, ctype)
}
