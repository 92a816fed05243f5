package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-medical-image-analyzer/internal/config"
	apperrors "go-medical-image-analyzer/internal/errors"
	"go-medical-image-analyzer/internal/observer"
	"go-medical-image-analyzer/internal/service"
	"go-medical-image-analyzer/internal/validation"
	"go-medical-image-analyzer/internal/vision"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAnalysisService records the inputs it was called with and replays
// a scripted outcome
type fakeAnalysisService struct {
	lastQuestion string
	lastSource   string
	outcome      *service.AnalysisOutcome
	err          error
}

func (f *fakeAnalysisService) AnalyzeImage(ctx context.Context, data []byte, question, source string) (*service.AnalysisOutcome, error) {
	f.lastQuestion = question
	f.lastSource = source
	return f.outcome, f.err
}

func (f *fakeAnalysisService) AnalyzeImageURL(ctx context.Context, imageURL, question string) (*service.AnalysisOutcome, error) {
	f.lastQuestion = question
	f.lastSource = imageURL
	return f.outcome, f.err
}

func (f *fakeAnalysisService) Models() []vision.ModelSpec {
	return []vision.ModelSpec{
		{Label: "Model A", ID: "model-a"},
		{Label: "Model B", ID: "model-b"},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Host:            "127.0.0.1",
		Port:            "8080",
		RequestTimeout:  5 * time.Second,
		MaxUploadSize:   1 << 20,
		DefaultQuestion: config.DefaultQuestion,
	}
}

func scriptedOutcome() *service.AnalysisOutcome {
	return &service.AnalysisOutcome{
		Image: &validation.ValidatedImage{
			Data:   []byte{0x89, 0x50},
			Format: "png",
			Width:  1,
			Height: 1,
		},
		Results: []vision.ModelResult{
			{
				Spec:    vision.ModelSpec{Label: "Model A", ID: "model-a"},
				Content: "No anomalies detected.",
			},
			{
				Spec: vision.ModelSpec{Label: "Model B", ID: "model-b"},
				Err:  apperrors.NewUpstreamError("model model-b returned status 500", "server error"),
			},
		},
		Elapsed: 42 * time.Millisecond,
	}
}

func multipartBody(t *testing.T, question string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "scan.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte{0x89, 0x50, 0x4E, 0x47})

	if question != "" {
		writer.WriteField("question", question)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestHandler_AnalyzeUpload(t *testing.T) {
	svc := &fakeAnalysisService{outcome: scriptedOutcome()}
	handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

	body, contentType := multipartBody(t, "what is shown?")
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp AnalysisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Question != "what is shown?" {
		t.Errorf("unexpected question: %q", resp.Question)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 result slots, got %d", len(resp.Results))
	}
	if resp.Results[0].Model != "Model A" || resp.Results[0].Content != "No anomalies detected." {
		t.Errorf("unexpected slot A: %+v", resp.Results[0])
	}
	if resp.Results[1].Model != "Model B" || !strings.Contains(resp.Results[1].Error, "server error") {
		t.Errorf("unexpected slot B: %+v", resp.Results[1])
	}
	if resp.Results[1].Content != "" {
		t.Errorf("failed slot must not carry content: %+v", resp.Results[1])
	}
	if svc.lastSource != "scan.png" {
		t.Errorf("expected upload filename as source, got %q", svc.lastSource)
	}
}

func TestHandler_AnalyzeUpload_DefaultQuestion(t *testing.T) {
	svc := &fakeAnalysisService{outcome: scriptedOutcome()}
	handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

	body, contentType := multipartBody(t, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastQuestion != config.DefaultQuestion {
		t.Errorf("expected default question substitution, got %q", svc.lastQuestion)
	}
}

func TestHandler_AnalyzeUpload_MissingFile(t *testing.T) {
	svc := &fakeAnalysisService{outcome: scriptedOutcome()}
	handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader("question=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_AnalyzeUpload_ValidationError(t *testing.T) {
	svc := &fakeAnalysisService{err: apperrors.NewValidationError("invalid image", nil)}
	handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

	body, contentType := multipartBody(t, "what is shown?")
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for validation error, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid image") {
		t.Errorf("expected diagnostic in body, got: %s", rec.Body.String())
	}
}

func TestHandler_AnalyzeUpload_ConfigurationError(t *testing.T) {
	svc := &fakeAnalysisService{err: apperrors.NewConfigurationError("GROQ_API_KEY not found in environment variables")}
	handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

	body, contentType := multipartBody(t, "what is shown?")
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for configuration error, got %d", rec.Code)
	}
}

func TestHandler_AnalyzeURL(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		expectCode int
	}{
		{
			name:       "valid request",
			payload:    `{"url":"https://scans.example.com/chest.png","question":"what is shown?"}`,
			expectCode: http.StatusOK,
		},
		{
			name:       "missing url",
			payload:    `{"question":"what is shown?"}`,
			expectCode: http.StatusBadRequest,
		},
		{
			name:       "unsupported scheme",
			payload:    `{"url":"ftp://scans.example.com/chest.png","question":"what is shown?"}`,
			expectCode: http.StatusBadRequest,
		},
		{
			name:       "not json",
			payload:    `not json`,
			expectCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAnalysisService{outcome: scriptedOutcome()}
			handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

			req := httptest.NewRequest(http.MethodPost, "/v1/analyze-url", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectCode {
				t.Errorf("expected %d, got %d: %s", tt.expectCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_ListModels(t *testing.T) {
	svc := &fakeAnalysisService{}
	handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Model A") || !strings.Contains(body, "model-b") {
		t.Errorf("expected configured models in body, got: %s", body)
	}
	if !strings.Contains(body, config.DefaultQuestion) {
		t.Errorf("expected default question in body, got: %s", body)
	}
}

func TestHandler_Health(t *testing.T) {
	svc := &fakeAnalysisService{}
	handler := NewHandler(svc, observer.NewMetricsObserver(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "available") {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestHandler_Metrics(t *testing.T) {
	metrics := observer.NewMetricsObserver()
	metrics.OnEvent(context.Background(), observer.ConsultationEvent{EventType: observer.ConsultationStarted})

	handler := NewHandler(&fakeAnalysisService{}, metrics, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total_consultations":1`) {
		t.Errorf("expected consultation counter, got: %s", rec.Body.String())
	}
}
