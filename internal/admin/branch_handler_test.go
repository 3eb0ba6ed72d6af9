package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"miyan-backend/internal/access"
	"miyan-backend/internal/apperr"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestNormalizeCode(t *testing.T) {
	code, err := normalizeCode("  Beresht-2 ")
	require.NoError(t, err)
	require.Equal(t, "beresht-2", code)

	for _, bad := range []string{"", "two words", "trailing-", "-lead", "a--b", "ب"} {
		_, err := normalizeCode(bad)
		require.True(t, apperr.IsValidation(err), bad)
	}
}

func TestCreateBranchRejectsBadInput(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler(zap.NewNop())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxCallerKey, access.Caller{UserID: 1, Role: models.RoleAdmin})
		return c.Next()
	})
	// input is rejected before any query runs
	app.Post("/branches", CreateBranchHandler(nil))

	cases := map[string]string{
		`{"code":"madi"}`:              "name",
		`{"name":"Madi"}`:              "code",
		`{"name":"Madi","code":"M D"}`: "code",
	}
	for body, field := range cases {
		req := httptest.NewRequest(http.MethodPost, "/branches", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)

		var out struct {
			Errors map[string]string `json:"errors"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Contains(t, out.Errors, field, body)
	}
}

// dryRunDB builds statements against the postgres dialect without a server.
// The last create statement is stored in *last.
func dryRunDB(t *testing.T, last **gorm.Statement) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=postgres dbname=miyan sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
		*last = tx.Statement
	}))
	return db
}

func TestInsertBranchKeepsInactiveFlag(t *testing.T) {
	var stmt *gorm.Statement
	db := dryRunDB(t, &stmt)

	branch := models.Branch{Name: "Closed", Code: "closed", IsActive: false}
	require.NoError(t, insertBranch(db, &branch))
	require.NotNil(t, stmt)

	require.Contains(t, stmt.SQL.String(), `"is_active"`)
	require.Contains(t, stmt.Vars, false)
	require.NotContains(t, stmt.Vars, true)
	require.False(t, branch.IsActive)
}
