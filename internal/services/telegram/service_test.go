package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.TelegramConfig {
	return models.TelegramConfig{
		BotToken: "123456:ABC-DEF",
		ChatID:   "-100123456789",
	}
}

func TestSendNotification_Success(t *testing.T) {
	var capturedRequest *http.Request
	var capturedBody sendMessageRequest

	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			capturedRequest = req
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &capturedBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("{\"ok\":true}")),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	msg := models.TelegramMessage{
		Success:       true,
		Host:          "office-pc",
		MediaType:     models.MediaTape,
		Volume:        "BACKUP",
		StartTime:     time.Now().Add(-5 * time.Minute),
		Duration:      5 * time.Minute,
		DriveLetter:   "E:",
		Outcome:       "success",
		UsageResponse: "Media T-4: Last Used date and Usage Count updated.",
		MessageSent:   true,
	}

	result, err := svc.SendNotification(context.Background(), testConfig(), msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)

	// Verify request
	assert.Equal(t, http.MethodPost, capturedRequest.Method)
	assert.Contains(t, capturedRequest.URL.String(), "/bot123456:ABC-DEF/sendMessage")
	assert.Equal(t, "application/json", capturedRequest.Header.Get("Content-Type"))

	// Verify body
	assert.Equal(t, "-100123456789", capturedBody.ChatID)
	assert.Equal(t, "HTML", capturedBody.ParseMode)
	assert.Contains(t, capturedBody.Text, "Tape backup complete")
}

func TestSendNotification_FailureMessage(t *testing.T) {
	var capturedBody sendMessageRequest

	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &capturedBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("{}")),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	msg := models.TelegramMessage{
		Success:      false,
		Host:         "office-pc",
		MediaType:    models.MediaFlash,
		StartTime:    time.Now(),
		Duration:     1 * time.Minute,
		ExitCode:     2,
		FailedStep:   "mounting",
		ErrorMessage: `volume "BACKUP" not found after 5 attempts`,
	}

	result, err := svc.SendNotification(context.Background(), testConfig(), msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)

	// Verify message content
	assert.Contains(t, capturedBody.Text, "Flash Drive backup failed")
	assert.Contains(t, capturedBody.Text, "Failed step: mounting")
	assert.Contains(t, capturedBody.Text, "not found after 5 attempts")
}

func TestSendNotification_HTTPError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("network error")
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to send request")
}

func TestSendNotification_APIError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(strings.NewReader(`{"ok":false,"description":"Bad Request: chat not found"}`)),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	require.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "status 400")
	assert.Contains(t, result.Error.Error(), "chat not found")
}

func TestFormatMessage_Success(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Success:       true,
		Host:          "office-pc",
		MediaType:     models.MediaExternalHD,
		Volume:        "OFFSITE",
		StartTime:     time.Date(2026, 1, 15, 22, 30, 0, 0, time.UTC),
		Duration:      42*time.Minute + 10*time.Second,
		DriveLetter:   "F:",
		Outcome:       "success_with_warnings",
		UsageResponse: "Media HD-2: Last Used date and Usage Count updated.",
		MessageSent:   true,
		LogsPruned:    3,
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "External HD backup complete")
	assert.Contains(t, result, "office-pc")
	assert.Contains(t, result, "OFFSITE")
	assert.Contains(t, result, "2026-01-15 22:30:00")
	assert.Contains(t, result, "42m10s")
	assert.Contains(t, result, "Drive: F:")
	assert.Contains(t, result, "Backup job: success_with_warnings")
	assert.Contains(t, result, "Usage: Media HD-2")
	assert.Contains(t, result, "Email sent: true")
	assert.Contains(t, result, "Old logs removed: 3")
	assert.Contains(t, result, "Exit code: 0")
	assert.NotContains(t, result, "Error Details")
}

func TestFormatMessage_Failure(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Success:      false,
		Host:         "office-pc",
		MediaType:    models.MediaCDRW,
		StartTime:    time.Now(),
		Duration:     1 * time.Minute,
		Outcome:      "failed",
		ExitCode:     2,
		FailedStep:   "backup",
		ErrorMessage: "backup job exited with status 2",
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "Read/Write CD backup failed")
	assert.Contains(t, result, "Failed step: backup")
	assert.Contains(t, result, "backup job exited with status 2")
	assert.Contains(t, result, "Exit code: 2")
	assert.NotContains(t, result, "Email sent")
}

func TestFormatMessage_NoMediaType(t *testing.T) {
	svc := New(testLogger())

	result := svc.formatMessage(models.TelegramMessage{Success: false, FailedStep: "validating"})

	assert.Contains(t, result, "<b>Backup failed</b>")
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"<script>", "&lt;script&gt;"},
		{"a & b", "a &amp; b"},
		{"<>&", "&lt;&gt;&amp;"},
		{"normal text", "normal text"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeHTML(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSendNotification_ContextCancelled(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, context.Canceled
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.SendNotification(ctx, testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
}
