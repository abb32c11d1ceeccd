package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandleMessageAppendsLine(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	for _, id := range []uint64{1, 2} {
		body, _ := json.Marshal(ContactReceivedEvent{
			ContactID: id, Name: "Ana", Email: "ana@x.com", Preview: "hello", ReceivedAt: "2025-01-01T00:00:00Z",
		})
		if err := HandleMessage(dir, body); err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, "contact.log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "contact_id=2") || !strings.Contains(lines[0], `name="Ana"`) {
		t.Fatalf("log = %q", raw)
	}
}

func TestHandleMessageRejects(t *testing.T) {
	dir := t.TempDir()
	for _, body := range []string{"not json", `{"name":"no id"}`} {
		if err := HandleMessage(dir, []byte(body)); err == nil {
			t.Errorf("body %q accepted", body)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "contact.log")); !os.IsNotExist(err) {
		t.Fatalf("log file written for rejected messages: %v", err)
	}
}

func TestPreview(t *testing.T) {
	short := "short message"
	if Preview(short) != short {
		t.Fatal("short message changed")
	}
	long := strings.Repeat("é", 130)
	got := Preview(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 123 {
		t.Fatalf("preview rune length = %d", len([]rune(got)))
	}
}
