package server

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWebLogger_BasicLogging(t *testing.T) {
	messageChan := make(chan ConsoleMessage, 10)
	logger := NewWebLogger("test-render-123", messageChan)

	testMessage := "Test log message"
	logger.Printf("%s\n", testMessage)

	select {
	case msg := <-messageChan:
		expectedMessage := testMessage + "\n"
		if msg.Message != expectedMessage {
			t.Errorf("Expected message '%s', got '%s'", expectedMessage, msg.Message)
		}
		if msg.Level != "info" {
			t.Errorf("Expected level 'info', got '%s'", msg.Level)
		}
		if msg.RenderID != "test-render-123" {
			t.Errorf("Expected render ID 'test-render-123', got '%s'", msg.RenderID)
		}
		if time.Since(msg.Timestamp) > time.Second {
			t.Errorf("Timestamp seems too old: %v", msg.Timestamp)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for console message")
	}
}

func TestWebLogger_MultipleMessages(t *testing.T) {
	messageChan := make(chan ConsoleMessage, 10)
	logger := NewWebLogger("test-render-456", messageChan)

	messages := []string{"Pass 1 completed", "Pass 2 completed", "Pass 3 completed"}
	for _, msg := range messages {
		logger.Printf("%s\n", msg)
	}

	for i, expected := range messages {
		select {
		case msg := <-messageChan:
			if msg.Message != expected+"\n" {
				t.Errorf("Message %d: expected '%s', got '%s'", i, expected+"\n", msg.Message)
			}
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("Timeout waiting for message %d", i+1)
		}
	}
}

func TestWebLogger_ChannelFull(t *testing.T) {
	messageChan := make(chan ConsoleMessage, 1)
	logger := NewWebLogger("test-render-789", messageChan)

	logger.Printf("Message 1\n")
	// These must be dropped rather than block
	logger.Printf("Message 2\n")
	logger.Printf("Message 3\n")

	msg := <-messageChan
	if msg.Message != "Message 1\n" {
		t.Errorf("Expected first message to be kept, got %q", msg.Message)
	}
	select {
	case extra := <-messageChan:
		t.Errorf("Expected overflow messages to be dropped, got %q", extra.Message)
	default:
	}
}

func TestWebLogger_NilChannel(t *testing.T) {
	logger := NewWebLogger("test-render-nil", nil)
	logger.Printf("Test message with nil channel\n")
}

func TestWebLogger_MirrorsToOutput(t *testing.T) {
	var out bytes.Buffer
	logger := &WebLogger{renderID: "render-1", out: &out}

	logger.Printf("Rendering %s with %d spheres...\n", "default", 5)

	expected := "[render-1] Rendering default with 5 spheres...\n"
	if out.String() != expected {
		t.Errorf("Expected output %q, got %q", expected, out.String())
	}
}

func TestMessageLevel(t *testing.T) {
	tests := []struct {
		message string
		level   string
	}{
		{"Pass 1 completed in 2ms\n", "info"},
		{"Rendering cancelled before pass 3\n", "warning"},
		{"Render warning: large image\n", "warning"},
	}

	for _, tt := range tests {
		if got := messageLevel(tt.message); got != tt.level {
			t.Errorf("messageLevel(%q) = %q, want %q", tt.message, got, tt.level)
		}
	}
}

func TestConsoleMessage_JSONSerialization(t *testing.T) {
	msg := ConsoleMessage{
		RenderID:  "render-1",
		Message:   "Test message",
		Timestamp: time.Now(),
		Level:     "info",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{`"renderId"`, `"message"`, `"timestamp"`, `"level"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected JSON to contain %s, got %s", key, data)
		}
	}
}
