package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"lookbook/server/internal/auth"
	"lookbook/server/internal/breaker"
	"lookbook/server/internal/files"
	"lookbook/server/internal/generation"
	"lookbook/server/internal/store"
	"lookbook/server/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// setupTestRouter builds a full server over a temp database and namespace.
// faultProbability 0 always succeeds, 1 always trips the simulated overload.
func setupTestRouter(t *testing.T, faultProbability float64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ns, err := files.NewNamespace(t.TempDir())
	if err != nil {
		t.Fatalf("namespace: %v", err)
	}

	log := telemetry.NewLogger(false)
	breakerCfg := breaker.DefaultConfig()
	users := store.NewUserRepo(db, breakerCfg)
	gens := store.NewGenerationRepo(db, breakerCfg)
	authSvc := auth.NewService(users, "test-secret", 7*24*time.Hour, 4)
	backend := generation.NewSimulated(ns, faultProbability, 0, 0)
	genSvc := generation.NewService(gens, ns, backend, log)

	return NewServer(authSvc, genSvc, ns, log, false).Router()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Message string `json:"message"`
		Errors  []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func signup(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	code, env := doJSON(t, router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": email, "password": "secret123", "name": "Jane",
	}, "")
	if code != http.StatusCreated {
		t.Fatalf("signup status=%d", code)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("signup returned no token: %s", env.Data)
	}
	return data.Token
}

func generateRequest(t *testing.T, token, prompt, style string, image []byte, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("prompt", prompt)
	_ = w.WriteField("style", style)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="image"; filename="photo.jpg"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		t.Fatalf("write image: %v", err)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var data struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Status != "ok" || data.Timestamp == "" {
		t.Fatalf("unexpected health payload: %s", env.Data)
	}
}

func TestSignupValidationReturnsAllFieldErrors(t *testing.T) {
	router := setupTestRouter(t, 0)
	code, env := doJSON(t, router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "not-an-email", "password": "short", "name": "J",
	}, "")
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", code)
	}
	if env.Success {
		t.Fatalf("success must be false")
	}
	if len(env.Error.Errors) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %+v", len(env.Error.Errors), env.Error.Errors)
	}
}

func TestSignupConflict(t *testing.T) {
	router := setupTestRouter(t, 0)
	signup(t, router, "jane@example.com")

	code, env := doJSON(t, router, http.MethodPost, "/v1/auth/signup", map[string]string{
		"email": "jane@example.com", "password": "secret123", "name": "Jane",
	}, "")
	if code != http.StatusConflict {
		t.Fatalf("status=%d", code)
	}
	if env.Error.Message != "User already exists" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	router := setupTestRouter(t, 0)
	signup(t, router, "jane@example.com")

	wrongPassword := map[string]string{"email": "jane@example.com", "password": "wrong-pass"}
	noSuchUser := map[string]string{"email": "nobody@example.com", "password": "secret123"}

	codeA, envA := doJSON(t, router, http.MethodPost, "/v1/auth/login", wrongPassword, "")
	codeB, envB := doJSON(t, router, http.MethodPost, "/v1/auth/login", noSuchUser, "")
	if codeA != http.StatusUnauthorized || codeB != http.StatusUnauthorized {
		t.Fatalf("statuses=%d,%d", codeA, codeB)
	}
	if envA.Error.Message != envB.Error.Message {
		t.Fatalf("messages must be identical: %q vs %q", envA.Error.Message, envB.Error.Message)
	}
}

func TestMe(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	code, env := doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, token)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var data struct {
		User struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.User.Email != "jane@example.com" || data.User.Name != "Jane" {
		t.Fatalf("unexpected profile: %s", env.Data)
	}

	code, _ = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status=%d", code)
	}
}

func TestCreateGenerationHappyPath(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	image := bytes.Repeat([]byte{0xFF}, 1024)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, token, "Transform to vintage style", "vintage", image, "image/jpeg"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatalf("success must be true")
	}
	var gen struct {
		ID        uint    `json:"id"`
		Prompt    string  `json:"prompt"`
		Style     string  `json:"style"`
		ImageURL  string  `json:"imageUrl"`
		ResultURL *string `json:"resultUrl"`
		Status    string  `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &gen); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if gen.ID == 0 || gen.Prompt != "Transform to vintage style" || gen.Style != "vintage" {
		t.Fatalf("unexpected generation: %+v", gen)
	}
	if gen.Status != "completed" || gen.ImageURL == "" || gen.ResultURL == nil || *gen.ResultURL == "" {
		t.Fatalf("expected completed generation with both urls: %+v", gen)
	}
	for _, key := range []string{`"imageUrl":`, `"resultUrl":`, `"userId":`, `"createdAt":`} {
		if !bytes.Contains(rec.Body.Bytes(), []byte(key)) {
			t.Fatalf("payload must use key %s: %s", key, rec.Body.String())
		}
	}

	// The recorded image is downloadable through the secure file route.
	fileReq := httptest.NewRequest(http.MethodGet, gen.ImageURL, nil)
	fileReq.Header.Set("Authorization", "Bearer "+token)
	fileRec := httptest.NewRecorder()
	router.ServeHTTP(fileRec, fileReq)
	if fileRec.Code != http.StatusOK {
		t.Fatalf("file download status=%d", fileRec.Code)
	}
	if !bytes.Equal(fileRec.Body.Bytes(), image) {
		t.Fatalf("file bytes mismatch")
	}
}

func TestCreateGenerationOverloaded(t *testing.T) {
	router := setupTestRouter(t, 1)
	token := signup(t, router, "jane@example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, token, "Transform to vintage style", "vintage", []byte("img"), "image/jpeg"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Message != "Model overloaded" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}

	// No row survives a fault-injected request.
	code, listEnv := doJSON(t, router, http.MethodGet, "/v1/generations", nil, token)
	if code != http.StatusOK {
		t.Fatalf("list status=%d", code)
	}
	if string(listEnv.Data) != "[]" {
		t.Fatalf("expected an empty array, got %s", listEnv.Data)
	}
}

func TestCreateGenerationMissingImage(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("prompt", "Transform to vintage style")
	_ = w.WriteField("style", "vintage")
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/v1/generations", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestCreateGenerationValidation(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, token, "ab", "futuristic", []byte("img"), "text/plain"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Error.Errors) != 3 {
		t.Fatalf("expected prompt, style and image errors, got %+v", env.Error.Errors)
	}
}

func TestCreateGenerationMultibytePromptCountsRunes(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	// 200 characters but 600 bytes: within the 500-character bound.
	prompt := string(bytes.Repeat([]byte("昭"), 200))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, token, prompt, "vintage", []byte("img"), "image/jpeg"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	// 501 characters is over the bound regardless of byte length.
	tooLong := string(bytes.Repeat([]byte("a"), 501))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, token, tooLong, "vintage", []byte("img"), "image/jpeg"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateGenerationUnauthenticated(t *testing.T) {
	router := setupTestRouter(t, 0)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, "", "Transform to vintage style", "vintage", []byte("img"), "image/jpeg"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestListGenerationsInvalidLimitFallsBack(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	for i := 0; i < 7; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, generateRequest(t, token, fmt.Sprintf("prompt number %d", i), "casual", []byte("img"), "image/png"))
		if rec.Code != http.StatusCreated {
			t.Fatalf("generation %d status=%d", i, rec.Code)
		}
	}

	code, env := doJSON(t, router, http.MethodGet, "/v1/generations?limit=abc", nil, token)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var gens []struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(env.Data, &gens); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(gens) != 5 {
		t.Fatalf("expected default limit of 5, got %d", len(gens))
	}
}

func TestListGenerationsLimit(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, generateRequest(t, token, fmt.Sprintf("prompt number %d", i), "casual", []byte("img"), "image/png"))
		if rec.Code != http.StatusCreated {
			t.Fatalf("generation %d status=%d", i, rec.Code)
		}
	}

	code, env := doJSON(t, router, http.MethodGet, "/v1/generations?limit=2", nil, token)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var gens []struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(env.Data, &gens); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(gens) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(gens))
	}
	// Newest first.
	if gens[0].Prompt != "prompt number 2" {
		t.Fatalf("expected most recent row first, got %q", gens[0].Prompt)
	}
}

func TestFileAccessDeniedForOtherUser(t *testing.T) {
	router := setupTestRouter(t, 0)
	tokenA := signup(t, router, "a@example.com")
	tokenB := signup(t, router, "b@example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, tokenA, "Transform to vintage style", "vintage", []byte("img"), "image/jpeg"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("generation status=%d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var gen struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := json.Unmarshal(env.Data, &gen); err != nil {
		t.Fatalf("decode data: %v", err)
	}

	// User B requests user A's file: 403 regardless of existence.
	req := httptest.NewRequest(http.MethodGet, gen.ImageURL, nil)
	req.Header.Set("Authorization", "Bearer "+tokenB)
	crossRec := httptest.NewRecorder()
	router.ServeHTTP(crossRec, req)
	if crossRec.Code != http.StatusForbidden {
		t.Fatalf("status=%d", crossRec.Code)
	}

	// Same answer for a file that does not exist.
	req = httptest.NewRequest(http.MethodGet, "/v1/files/1/does_not_exist.png", nil)
	req.Header.Set("Authorization", "Bearer "+tokenB)
	missingRec := httptest.NewRecorder()
	router.ServeHTTP(missingRec, req)
	if missingRec.Code != http.StatusForbidden {
		t.Fatalf("status=%d", missingRec.Code)
	}
}

func TestFileAccessTraversalBlocked(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	req := httptest.NewRequest(http.MethodGet, "/v1/files/1/..%2F..%2Fetc%2Fpasswd", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Fatalf("traversal must be rejected, status=%d", rec.Code)
	}
}

func TestFileAccessQueryParamToken(t *testing.T) {
	router := setupTestRouter(t, 0)
	token := signup(t, router, "jane@example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, generateRequest(t, token, "Transform to vintage style", "vintage", []byte("img"), "image/jpeg"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("generation status=%d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var gen struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := json.Unmarshal(env.Data, &gen); err != nil {
		t.Fatalf("decode data: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, gen.ImageURL+"?authorization="+token, nil)
	dlRec := httptest.NewRecorder()
	router.ServeHTTP(dlRec, req)
	if dlRec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", dlRec.Code, dlRec.Body.String())
	}
}

func TestFileAccessUnauthenticated(t *testing.T) {
	router := setupTestRouter(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/v1/files/1/img_x.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	router := setupTestRouter(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Message != "Route not found" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}
