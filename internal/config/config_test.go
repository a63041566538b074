package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/matching"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PORT", "")

	s := FromEnv()
	assert.Equal(t, DriverSQLite, s.DBDriver)
	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, 10, s.Matching.DateWindowDays)
	assert.InDelta(t, 0.90, s.Policy.AutoApplyThreshold, 1e-9)
	assert.NoError(t, s.Validate())
}

func TestLoadReadsEnvFileAndMatchingConfig(t *testing.T) {
	matchingPath := writeFile(t, "matching.yaml", `
matcher: fuzzy_description
amount_tolerance: "0.05"
date_window_days: 7
fuzzy_floor: 0.75
matcher_weights:
  date_window: 0.2
auto_apply_threshold: 0.95
review_threshold: ${REVIEW_THRESHOLD}
retry_backoff: 25ms
workers: 2
`)
	envPath := writeFile(t, ".env", "DB_DRIVER=postgres\nDATABASE_URL=postgres://localhost/recon\nPORT=9090\nMATCHING_CONFIG="+matchingPath+"\n")

	for _, key := range []string{"DB_DRIVER", "DATABASE_URL", "PORT", "MATCHING_CONFIG"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("REVIEW_THRESHOLD", "0.65")

	s, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, s.DBDriver)
	assert.Equal(t, "9090", s.Port)
	assert.Equal(t, matching.KindFuzzyDescription, s.Matching.Matcher)
	assert.Equal(t, "0.05", s.Matching.AmountTolerance.String())
	assert.Equal(t, 7, s.Matching.DateWindowDays)
	assert.InDelta(t, 0.75, s.Matching.FuzzyFloor, 1e-9)
	assert.InDelta(t, 0.2, s.Matching.Weights[matching.KindDateWindow], 1e-9)
	assert.InDelta(t, 1.0, s.Matching.Weights[matching.KindExact], 1e-9)
	assert.InDelta(t, 0.95, s.Policy.AutoApplyThreshold, 1e-9)
	assert.InDelta(t, 0.65, s.Policy.ReviewThreshold, 1e-9)
	assert.Equal(t, 25*time.Millisecond, s.Policy.RetryBackoff)
	assert.Equal(t, 2, s.Policy.Workers)
}

func TestLoadMatchingFileRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"tolerance": `amount_tolerance: "abc"`,
		"backoff":   `retry_backoff: soon`,
		"yaml":      `date_window_days: [1, 2`,
		"matcher":   `matcher: soundex`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			s := FromEnv()
			err := s.LoadMatchingFile(writeFile(t, "m.yaml", content))
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestValidate(t *testing.T) {
	s := FromEnv()
	s.DBDriver = "mysql"
	assert.ErrorIs(t, s.Validate(), apperr.ErrValidation)

	s = FromEnv()
	s.Port = "http"
	assert.ErrorIs(t, s.Validate(), apperr.ErrValidation)

	s = FromEnv()
	s.Policy.ReviewThreshold = 0.99
	assert.ErrorIs(t, s.Validate(), apperr.ErrValidation)

	s = FromEnv()
	s.Matching.Weights = map[matching.Kind]float64{"MAGIC": 1}
	assert.ErrorIs(t, s.Validate(), apperr.ErrValidation)
}

func TestInitDBSQLite(t *testing.T) {
	s := FromEnv()
	s.DatabaseURL = filepath.Join(t.TempDir(), "recon.db")

	db, err := InitDB(s)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&models.Receivable{}))
	assert.True(t, db.Migrator().HasTable(&models.ReviewItem{}))
}
