package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-engine/internal/config"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

// seed prepares a sqlite database with one auto-matchable transaction and
// points the environment at it.
func seed(t *testing.T) (accountID, txID string) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("MATCHING_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	settings := config.FromEnv()
	db, err := config.InitDB(settings)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, config.Migrate(db))

	svc, err := service.NewReconciliationService(db, settings.Matching, settings.Policy)
	require.NoError(t, err)

	ctx := context.Background()
	acc, err := svc.CreateAccount(ctx, service.AccountInput{Name: "Operating", IBAN: "IT60X0542811101000000123456", Currency: "EUR"})
	require.NoError(t, err)
	_, _, err = svc.RegisterReceivable(ctx, service.ReceivableInput{
		Number:           "INV-1001",
		CounterpartyName: "Bianchi",
		TotalAmount:      decimal.RequireFromString("1000.00"),
		DueDate:          time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.ImportTransactions(ctx, acc.ID, []service.TransactionRecord{{
		ValueDate:         time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:            decimal.RequireFromString("1000.00"),
		Description:       "BONIFICO",
		ExternalReference: "STMT-1",
	}})
	require.NoError(t, err)

	page, err := svc.ListTransactions(ctx, acc.ID, "", "", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	return acc.ID.String(), page.Transactions[0].ID.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunThenRevert(t *testing.T) {
	accountID, txID := seed(t)

	out, err := execute(t, "run", "--quiet", "--account", accountID)
	require.NoError(t, err)
	assert.Contains(t, out, "auto-matched: 1")
	assert.Contains(t, out, "completed")

	out, err = execute(t, "revert", txID, "--reason", "wrong customer")
	require.NoError(t, err)
	assert.Contains(t, out, "reverted")

	_, err = execute(t, "reset", txID)
	assert.Error(t, err)

	_, err = execute(t, "ignore", txID)
	require.NoError(t, err)
	_, err = execute(t, "reset", txID)
	require.NoError(t, err)
}

func TestRunAllAccounts(t *testing.T) {
	seed(t)

	out, err := execute(t, "run", "--budget", "30s")
	require.NoError(t, err)
	assert.Contains(t, out, "auto-matched: 1")
}

func TestInvalidArguments(t *testing.T) {
	seed(t)

	_, err := execute(t, "run", "--account", "nope")
	assert.Error(t, err)

	_, err = execute(t, "revert")
	assert.Error(t, err)

	_, err = execute(t, "revert", "not-a-uuid")
	assert.Error(t, err)
}

