package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/photo-describer/internal/auth"
	"github.com/example/photo-describer/internal/capture"
	"github.com/example/photo-describer/internal/inference"
	"github.com/example/photo-describer/internal/upload"
)

const testJWTSecret = "test-secret"

type stubDescriber struct {
	description string
	err         error

	calls    int
	image    []byte
	mimeType string
}

func (s *stubDescriber) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	s.calls++
	s.image = append([]byte(nil), image...)
	s.mimeType = mimeType
	if s.err != nil {
		return "", s.err
	}
	return s.description, nil
}

func newTestRouter(describer inference.Service, maxUpload int64, authMiddleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router, NewGateway(describer, zap.NewNop(), maxUpload), authMiddleware)
	return router
}

func postUpload(router *gin.Engine, body *bytes.Buffer, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestUploadDescribesImage(t *testing.T) {
	describer := &stubDescriber{description: "A cat on a mat"}
	router := newTestRouter(describer, 0, nil)

	body, contentType := buildMultipartBody(t, "image", "image/jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0})
	resp := postUpload(router, body, contentType, "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if got, want := resp.Body.String(), `{"description":"A cat on a mat"}`; got != want {
		t.Fatalf("unexpected body: got %s want %s", got, want)
	}
	if resp.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
	if describer.calls != 1 || describer.mimeType != "image/jpeg" {
		t.Fatalf("unexpected describer usage: calls=%d mime=%s", describer.calls, describer.mimeType)
	}
}

func TestUploadRoundTripsEncodedBytes(t *testing.T) {
	payloads := [][]byte{
		{0x00},
		[]byte("\r\n--boundary-like\r\n"),
		bytes.Repeat([]byte{0xFF, 0xD8, 0x00, 0x0A, 0x0D}, 4096),
	}
	for i, payload := range payloads {
		describer := &stubDescriber{description: "ok"}
		router := newTestRouter(describer, 0, nil)

		req, err := upload.Encode(capture.CapturedImage{Bytes: payload, MIMEType: "image/jpeg"})
		if err != nil {
			t.Fatalf("payload %d: encode failed: %v", i, err)
		}
		resp := postUpload(router, bytes.NewBuffer(req.Body), req.ContentType, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("payload %d: expected 200, got %d", i, resp.Code)
		}
		if !bytes.Equal(describer.image, payload) {
			t.Fatalf("payload %d: bytes changed in transit", i)
		}
	}
}

func TestUploadRequiresImage(t *testing.T) {
	withOtherField := func(t *testing.T) (*bytes.Buffer, string) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		if err := writer.WriteField("caption", "hello"); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
		_ = writer.Close()
		return body, writer.FormDataContentType()
	}
	wrongField := func(t *testing.T) (*bytes.Buffer, string) {
		return buildMultipartBody(t, "photo", "image/jpeg", []byte("jpeg"))
	}
	emptyPart := func(t *testing.T) (*bytes.Buffer, string) {
		return buildMultipartBody(t, "image", "image/jpeg", nil)
	}
	notMultipart := func(t *testing.T) (*bytes.Buffer, string) {
		return bytes.NewBufferString(`{"image":"aGk="}`), "application/json"
	}
	noBody := func(t *testing.T) (*bytes.Buffer, string) {
		return &bytes.Buffer{}, ""
	}

	cases := map[string]func(t *testing.T) (*bytes.Buffer, string){
		"other field only": withOtherField,
		"wrong field name": wrongField,
		"empty part":       emptyPart,
		"json body":        notMultipart,
		"no body":          noBody,
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			describer := &stubDescriber{description: "unused"}
			router := newTestRouter(describer, 0, nil)

			body, contentType := build(t)
			resp := postUpload(router, body, contentType, "")

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.Code)
			}
			if got, want := resp.Body.String(), `{"error":"Image is required."}`; got != want {
				t.Fatalf("unexpected body: got %s want %s", got, want)
			}
			if describer.calls != 0 {
				t.Fatalf("inference must not run, got %d calls", describer.calls)
			}
		})
	}
}

func TestUploadHidesUpstreamFailure(t *testing.T) {
	upstreamErr := &inference.Error{StatusCode: http.StatusUnauthorized, Body: `{"error":{"message":"Invalid API Key gsk-secret"}}`}
	for name, err := range map[string]error{
		"upstream status": upstreamErr,
		"transport":       errors.New("dial tcp: connection refused"),
	} {
		t.Run(name, func(t *testing.T) {
			router := newTestRouter(&stubDescriber{err: err}, 0, nil)

			body, contentType := buildMultipartBody(t, "image", "image/jpeg", []byte("jpeg"))
			resp := postUpload(router, body, contentType, "")

			if resp.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", resp.Code)
			}
			if got, want := resp.Body.String(), `{"error":"Internal Server Error"}`; got != want {
				t.Fatalf("unexpected body: got %s want %s", got, want)
			}
			if strings.Contains(resp.Body.String(), "gsk-secret") {
				t.Fatal("upstream detail leaked to client")
			}
		})
	}
}

func TestUploadRejectsLargeUpload(t *testing.T) {
	describer := &stubDescriber{description: "unused"}
	router := newTestRouter(describer, 1024, nil)

	body, contentType := buildMultipartBody(t, "image", "image/png", bytes.Repeat([]byte("a"), 1025))
	resp := postUpload(router, body, contentType, "")

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
	if describer.calls != 0 {
		t.Fatal("inference must not run for oversized uploads")
	}
}

func TestUploadSniffsMissingImageType(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
	cases := map[string]struct {
		header  string
		payload []byte
		want    string
	}{
		"octet stream png": {"application/octet-stream", png, "image/png"},
		"explicit webp":    {"image/webp", []byte("RIFF"), "image/webp"},
		"unknown bytes":    {"application/octet-stream", []byte("????"), "image/jpeg"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			describer := &stubDescriber{description: "ok"}
			router := newTestRouter(describer, 0, nil)

			body, contentType := buildMultipartBody(t, "image", tc.header, tc.payload)
			if resp := postUpload(router, body, contentType, ""); resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			if describer.mimeType != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, describer.mimeType)
			}
		})
	}
}

func TestUploadRequiresTokenWhenAuthEnabled(t *testing.T) {
	describer := &stubDescriber{description: "A cat on a mat"}
	router := newTestRouter(describer, 0, auth.JWTMiddleware(testJWTSecret, ""))

	body, contentType := buildMultipartBody(t, "image", "image/jpeg", []byte("jpeg"))
	if resp := postUpload(router, body, contentType, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	body, contentType = buildMultipartBody(t, "image", "image/jpeg", []byte("jpeg"))
	resp := postUpload(router, body, contentType, buildTestToken(t, "device-123"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", resp.Code, resp.Body.String())
	}
	if describer.calls != 1 {
		t.Fatalf("expected one inference call, got %d", describer.calls)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubDescriber{}, 0, auth.JWTMiddleware(testJWTSecret, ""))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || resp.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected health response: %d %s", resp.Code, resp.Body.String())
	}
}

func buildMultipartBody(t *testing.T, field, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="photo.jpg"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
