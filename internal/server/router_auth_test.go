package server

import (
	contextpkg "context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/auth"
	"github.com/MarcoPoloResearchLab/kudos/internal/database"
	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/users", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	handler := &httpHandler{
		tokens: stubTokenManager{
			validateErr: auth.ErrExpiredToken,
		},
		logger: logger,
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if recorder.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate challenge header")
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/users", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	handler := &httpHandler{
		tokens: stubTokenManager{
			validateErr: errors.New("signature mismatch"),
		},
		logger: logger,
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
}

func TestAuthorizeRequestRejectsMissingBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/users", http.NoBody)

	handler := &httpHandler{tokens: stubTokenManager{}, logger: zap.NewNop()}
	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
}

func TestAuthorizeRequestResolvesDirectoryUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "auth.db")}, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	directory, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct users service: %v", err)
	}
	active, err := directory.Create(contextpkg.Background(), users.NewUser{Email: "ada@example.com", FullName: "Ada"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	retired, err := directory.Create(contextpkg.Background(), users.NewUser{Email: "old@example.com", FullName: "Old"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := directory.Deactivate(contextpkg.Background(), retired.ID); err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}

	testCases := []struct {
		name       string
		subject    string
		wantStatus int
		wantUserID string
	}{
		{name: "active", subject: "ADA@example.com", wantStatus: http.StatusOK, wantUserID: active.ID},
		{name: "inactive", subject: "old@example.com", wantStatus: http.StatusBadRequest},
		{name: "unknown", subject: "ghost@example.com", wantStatus: http.StatusUnauthorized},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(recorder)
			request := httptest.NewRequest(http.MethodGet, "/auth/user", http.NoBody)
			request.Header.Set("Authorization", "Bearer valid-token")
			ctx.Request = request

			handler := &httpHandler{
				tokens:       stubTokenManager{subject: testCase.subject},
				usersService: directory,
				logger:       zap.NewNop(),
			}
			handler.authorizeRequest(ctx)

			if testCase.wantStatus == http.StatusOK {
				if ctx.IsAborted() {
					t.Fatalf("expected request to continue, got status %d", recorder.Code)
				}
				user, ok := currentUser(ctx)
				if !ok || user.ID != testCase.wantUserID {
					t.Fatalf("expected current user %s, got %+v", testCase.wantUserID, user)
				}
				return
			}
			if recorder.Code != testCase.wantStatus {
				t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, testCase.wantStatus)
			}
		})
	}
}

type stubTokenManager struct {
	subject     string
	validateErr error
}

func (s stubTokenManager) IssueAccessToken(contextpkg.Context, string, time.Duration) (string, int64, error) {
	return "", 0, errors.New("not implemented")
}

func (s stubTokenManager) ValidateToken(string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	return s.subject, nil
}
