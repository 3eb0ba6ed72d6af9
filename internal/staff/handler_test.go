package staff

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"miyan-backend/internal/access"
	"miyan-backend/internal/apperr"
	"miyan-backend/internal/auth"
	"miyan-backend/internal/config"
	"miyan-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func uptr(v uint) *uint { return &v }

func newShiftApp(svc *ShiftService, caller access.Caller) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler(zap.NewNop())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxCallerKey, caller)
		return c.Next()
	})
	app.Get("/shifts/current", CurrentShiftHandler(svc))
	app.Post("/shifts/start", StartShiftHandler(svc))
	app.Post("/shifts/end", EndShiftHandler(svc))
	return app
}

func call(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestShiftEndpoints(t *testing.T) {
	svc := NewShiftService(newMemoryShifts(), zap.NewNop())
	app := newShiftApp(svc, access.Caller{UserID: 2, Role: models.RoleStaff, StaffID: uptr(5)})

	status, body := call(t, app, http.MethodGet, "/shifts/current", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, false, body["active"])

	status, body = call(t, app, http.MethodPost, "/shifts/start", `{"branch_id":2}`)
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "madi", body["branch"].(map[string]any)["code"])
	require.Nil(t, body["ended_at"])

	status, body = call(t, app, http.MethodGet, "/shifts/current", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["active"])

	status, body = call(t, app, http.MethodPost, "/shifts/end", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, false, body["active"])
	require.NotNil(t, body["ended_at"])

	status, _ = call(t, app, http.MethodPost, "/shifts/end", "")
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestShiftEndpointsNeedStaffProfile(t *testing.T) {
	svc := NewShiftService(newMemoryShifts(), zap.NewNop())
	app := newShiftApp(svc, access.Caller{UserID: 1, Role: models.RoleAdmin})

	status, _ := call(t, app, http.MethodGet, "/shifts/current", "")
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = call(t, app, http.MethodPost, "/shifts/start", `{"branch_id":1}`)
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestStartShiftRequiresBranch(t *testing.T) {
	svc := NewShiftService(newMemoryShifts(), zap.NewNop())
	app := newShiftApp(svc, access.Caller{UserID: 2, Role: models.RoleStaff, StaffID: uptr(5)})

	status, body := call(t, app, http.MethodPost, "/shifts/start", `{}`)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Contains(t, body["errors"], "branch_id")
}

func TestTelegramTokenRequiresBotSecret(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		header string
	}{
		{"disabled", "", ""},
		{"missing header", "s3cret", ""},
		{"wrong header", "s3cret", "guess"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{BotSharedSecret: tc.secret}
			app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler(zap.NewNop())})
			// rejected before the database is touched
			app.Post("/telegram/token", TelegramTokenHandler(nil, cfg, newMemoryShifts()))

			req := httptest.NewRequest(http.MethodPost, "/telegram/token", strings.NewReader(`{"telegram_id":"42"}`))
			req.Header.Set("Content-Type", "application/json")
			if tc.header != "" {
				req.Header.Set(botSecretHeader, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestNewTelegramToken(t *testing.T) {
	a, b := NewTelegramToken(), NewTelegramToken()
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
	require.NotContains(t, a, "-")
}

func TestUpsertAssignmentCanDeactivate(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=postgres dbname=miyan sslmode=disable"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	var stmt *gorm.Statement
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
		stmt = tx.Statement
	}))

	row := models.StaffBranchAssignment{StaffID: 5, BranchID: 1, IsPrimary: true, IsActive: false}
	require.NoError(t, upsertAssignment(db, &row))
	require.NotNil(t, stmt)

	sql := stmt.SQL.String()
	require.Contains(t, sql, `ON CONFLICT ("staff_id","branch_id") DO UPDATE SET`)
	require.Contains(t, sql, `"is_active"="excluded"."is_active"`)
	// is_primary is the only true value; is_active must go out as false
	require.Contains(t, stmt.Vars, false)
	require.False(t, row.IsActive)
}
