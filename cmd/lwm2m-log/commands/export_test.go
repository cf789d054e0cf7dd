package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.llog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func exchangeEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp: ts,
			SessionID: "abc12345",
			ServerID:  101,
			Direction: log.DirectionIn,
			Layer:     log.LayerRouter,
			Category:  log.CategoryMessage,
			Message: &log.MessageEvent{
				Type:      log.MessageTypeRequest,
				CoAPType:  wire.Confirmable,
				Code:      uint8(codes.GET),
				MessageID: 42,
				Path:      "/3/0/0",
			},
		},
		{
			Timestamp: ts.Add(time.Millisecond),
			SessionID: "abc12345",
			ServerID:  101,
			Direction: log.DirectionOut,
			Layer:     log.LayerRouter,
			Category:  log.CategoryMessage,
			Message: &log.MessageEvent{
				Type:      log.MessageTypeResponse,
				CoAPType:  wire.Acknowledgement,
				Code:      uint8(codes.Content),
				MessageID: 42,
				Path:      "/3/0/0",
			},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond),
			SessionID: "abc12345",
			Direction: log.DirectionOut,
			Layer:     log.LayerClient,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityInstance,
				NewState: "CREATED",
				Path:     "/3303/1",
			},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, exchangeEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var decoded log.Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if decoded.SessionID != "abc12345" || decoded.ServerID != 101 {
		t.Errorf("unexpected event: %+v", decoded)
	}
	if decoded.Message == nil || decoded.Message.MessageID != 42 {
		t.Errorf("unexpected message: %+v", decoded.Message)
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, exchangeEvents())
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if err := export(reader, "csv", &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header and 3 rows, got %d records", len(records))
	}

	wantHeader := []string{"timestamp", "session_id", "server_id", "direction", "layer", "category", "type", "code", "message_id", "path"}
	if strings.Join(records[0], ",") != strings.Join(wantHeader, ",") {
		t.Errorf("header = %v", records[0])
	}

	want := [][]string{
		{"2026-01-28T10:15:32.123456Z", "abc12345", "101", "IN", "ROUTER", "MESSAGE", "REQUEST", "0.01", "42", "/3/0/0"},
		{"2026-01-28T10:15:32.124456Z", "abc12345", "101", "OUT", "ROUTER", "MESSAGE", "RESPONSE", "2.05", "42", "/3/0/0"},
		{"2026-01-28T10:15:32.125456Z", "abc12345", "", "OUT", "CLIENT", "STATE", "state", "", "", "/3303/1"},
	}
	for i, row := range want {
		if got := strings.Join(records[i+1], ","); got != strings.Join(row, ",") {
			t.Errorf("row %d = %s, want %s", i+1, got, strings.Join(row, ","))
		}
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, exchangeEvents())
	err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out.xml"))
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestExportMissingFile(t *testing.T) {
	if err := RunExport("/nonexistent/file.llog", "jsonl", ""); err == nil {
		t.Error("expected error for missing file")
	}
}
