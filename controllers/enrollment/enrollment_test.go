package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursepay/config"
	controllers "coursepay/controllers/enrollment"
	"coursepay/database"
	"coursepay/gateway"
	"coursepay/ledger"
	"coursepay/middleware"
	"coursepay/models"
	enrollmentRoutes "coursepay/routers/enrollmentRoutes"
)

var routeDBSeq int64

type stubGateway struct{}

func (stubGateway) Submit(req *gateway.BillRequest) (string, error) {
	return "https://pay.example.com/" + req.BillID, nil
}

func (stubGateway) RefundBill(billID string, amount int64) error { return nil }

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type routeEnv struct {
	app   *fiber.App
	db    *gorm.DB
	user  models.User
	token string
}

// setupRouteTest wires the full inbound chain: router, JWT middleware,
// validator, controller, ledger, sqlite store.
func setupRouteTest(t *testing.T) *routeEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:enroll_route_%d?mode=memory&cache=shared", atomic.AddInt64(&routeDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	database.RunMigrations(db)
	database.Database = database.DbInstance{Db: db}

	config.AppConfig = &config.Config{JWTKey: "route-test-secret", GatewaySecretKey: "test-secret"}

	user := models.User{Name: "김철수", Email: fmt.Sprintf("route%d@test.kr", routeDBSeq), Mobile: "010-1234-5678"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	controllers.Ledger = ledger.New(db, stubGateway{}, gateway.Config{SecretKey: "test-secret"}, nil, nil)

	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, user.Email, user.Mobile)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}

	app := fiber.New()
	enrollmentRoutes.SetupEnrollmentRoutes(app)
	return &routeEnv{app: app, db: db, user: user, token: token}
}

func (e *routeEnv) seedSchedule(t *testing.T, price int64) models.CourseSchedule {
	t.Helper()
	course := models.Course{Title: "Go 백엔드 실전", Price: price, Status: "ACTIVE"}
	if err := e.db.Create(&course).Error; err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}
	schedule := models.CourseSchedule{
		CourseID:  course.ID,
		StartDate: time.Now().AddDate(0, 0, 5),
		EndDate:   time.Now().AddDate(0, 0, 35),
		Status:    models.ScheduleStatusScheduled,
	}
	if err := e.db.Create(&schedule).Error; err != nil {
		t.Fatalf("failed to seed schedule: %v", err)
	}
	return schedule
}

func (e *routeEnv) do(t *testing.T, method, path string, body map[string]string, withAuth bool) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withAuth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	return resp.StatusCode, env
}

func TestEnrollmentRoute_FreeCourse(t *testing.T) {
	env := setupRouteTest(t)
	schedule := env.seedSchedule(t, 0)

	code, resp := env.do(t, "POST", fmt.Sprintf("/enrollment/schedule/%d", schedule.ID), nil, true)
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s), want 200", code, resp.Message)
	}
	if !resp.Status {
		t.Errorf("envelope status = false: %s", resp.Message)
	}

	var enrollment models.Enrollment
	if err := env.db.Where("schedule_id = ?", schedule.ID).First(&enrollment).Error; err != nil {
		t.Fatalf("no enrollment row: %v", err)
	}
	if enrollment.Status != models.EnrollmentStatusConfirmed {
		t.Errorf("status = %s, want CONFIRMED", enrollment.Status)
	}
}

func TestEnrollmentRoute_PaidCourseWithPhoneBody(t *testing.T) {
	env := setupRouteTest(t)
	schedule := env.seedSchedule(t, 490000)

	code, resp := env.do(t, "POST", fmt.Sprintf("/enrollment/schedule/%d", schedule.ID),
		map[string]string{"phone": "010-9876-5432"}, true)
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s), want 200", code, resp.Message)
	}

	var data struct {
		BillURL string `json:"billUrl"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("bad data payload: %v", err)
	}
	if data.BillURL == "" {
		t.Error("no bill url returned for a paid course")
	}

	// The body phone, not the profile phone, is what gets signed
	var payment models.Payment
	if err := env.db.First(&payment).Error; err != nil {
		t.Fatalf("no payment row: %v", err)
	}
	if payment.Status != models.PaymentStatusProcessing {
		t.Errorf("payment status = %s, want PROCESSING", payment.Status)
	}
}

func TestEnrollmentRoute_FallsBackToProfilePhone(t *testing.T) {
	env := setupRouteTest(t)
	schedule := env.seedSchedule(t, 490000)

	// No body at all; the controller must fall back to user.Mobile
	code, resp := env.do(t, "POST", fmt.Sprintf("/enrollment/schedule/%d", schedule.ID), nil, true)
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s), want 200", code, resp.Message)
	}
}

func TestEnrollmentRoute_RequiresAuth(t *testing.T) {
	env := setupRouteTest(t)
	schedule := env.seedSchedule(t, 0)

	code, _ := env.do(t, "POST", fmt.Sprintf("/enrollment/schedule/%d", schedule.ID), nil, false)
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
}

func TestEnrollmentRoute_ScheduleConflict(t *testing.T) {
	env := setupRouteTest(t)
	schedule := env.seedSchedule(t, 0)
	env.db.Model(&models.CourseSchedule{}).Where("id = ?", schedule.ID).
		Update("status", models.ScheduleStatusOngoing)

	code, _ := env.do(t, "POST", fmt.Sprintf("/enrollment/schedule/%d", schedule.ID), nil, true)
	if code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for a closed schedule", code)
	}
}

func TestEnrollmentRoute_QuoteCancelAndRepeatCancel(t *testing.T) {
	env := setupRouteTest(t)
	schedule := env.seedSchedule(t, 0)

	if code, resp := env.do(t, "POST", fmt.Sprintf("/enrollment/schedule/%d", schedule.ID), nil, true); code != http.StatusOK {
		t.Fatalf("enroll status = %d (%s)", code, resp.Message)
	}
	var enrollment models.Enrollment
	if err := env.db.Where("schedule_id = ?", schedule.ID).First(&enrollment).Error; err != nil {
		t.Fatalf("no enrollment row: %v", err)
	}

	if code, resp := env.do(t, "GET", fmt.Sprintf("/enrollment/%d/refund-quote", enrollment.ID), nil, true); code != http.StatusOK {
		t.Fatalf("quote status = %d (%s)", code, resp.Message)
	}
	if code, resp := env.do(t, "POST", fmt.Sprintf("/enrollment/%d/cancel", enrollment.ID), nil, true); code != http.StatusOK {
		t.Fatalf("cancel status = %d (%s)", code, resp.Message)
	}
	if code, _ := env.do(t, "POST", fmt.Sprintf("/enrollment/%d/cancel", enrollment.ID), nil, true); code != http.StatusConflict {
		t.Fatalf("repeat cancel status = %d, want 409", code)
	}
}

func TestEnrollmentRoute_List(t *testing.T) {
	env := setupRouteTest(t)
	schedule := env.seedSchedule(t, 0)

	if code, resp := env.do(t, "POST", fmt.Sprintf("/enrollment/schedule/%d", schedule.ID), nil, true); code != http.StatusOK {
		t.Fatalf("enroll status = %d (%s)", code, resp.Message)
	}

	code, resp := env.do(t, "GET", "/enrollment/", nil, true)
	if code != http.StatusOK {
		t.Fatalf("list status = %d (%s)", code, resp.Message)
	}
	var data struct {
		Enrollments []models.Enrollment `json:"enrollments"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("bad data payload: %v", err)
	}
	if len(data.Enrollments) != 1 {
		t.Errorf("enrollments = %d, want 1", len(data.Enrollments))
	}
}
