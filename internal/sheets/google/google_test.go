package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendlens/internal/core"
	ports "spendlens/internal/sheets"
)

// fakeSheets answers the handful of Sheets API calls the client makes.
type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	calls    []string
	values   [][]any
	failOn   string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	var call string
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/v4/spreadsheets/sheet-id"):
		call = "get"
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		call = "add-sheet"
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		call = "clear"
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		call = "update"
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		call = "read"
	default:
		http.NotFound(w, r)
		return
	}
	f.calls = append(f.calls, call)

	w.Header().Set("Content-Type", "application/json")
	if call == f.failOn {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"bad request"}}`))
		return
	}

	switch call {
	case "get":
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case "add-sheet":
		f.titles = append(f.titles, DefaultSheetName)
		w.Write([]byte(`{}`))
	case "clear":
		f.values = nil
		w.Write([]byte(`{}`))
	case "update":
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.values = vr.Values
		w.Write([]byte(`{}`))
	case "read":
		json.NewEncoder(w).Encode(map[string]any{"values": f.values})
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "")
}

func sampleSummary() ports.Summary {
	return ports.Summary{
		RunID:      "run-1",
		TotalSpend: core.Money{Cents: 950000},
		Rows: []ports.Row{
			{Vendor: "Synoptek", Category: "it_services.managed_services", Spend: core.Money{Cents: 820000}, Share: 0.863158, Status: "Critical"},
			{Vendor: "Atlassian", Category: "development_tools.project_management", Spend: core.Money{Cents: 50050}, Share: 0.052684, Status: "Moderate Risk"},
		},
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), " ", "")
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: DefaultSheetName}
	if _, err := c.WriteSummary(context.Background(), sampleSummary()); err == nil {
		t.Error("expected error when service is nil")
	}
	if _, err := c.ReadSummary(context.Background()); err == nil {
		t.Error("expected error when service is nil")
	}
}

func TestWriteSummary_CreatesSheetAndRoundTrips(t *testing.T) {
	f := &fakeSheets{titles: []string{"Sheet1"}}
	c := newTestClient(t, f)
	ctx := context.Background()

	ref, err := c.WriteSummary(ctx, sampleSummary())
	if err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if ref != "'Spend Summary'!A1:E4" {
		t.Errorf("ref = %q", ref)
	}
	want := []string{"get", "add-sheet", "clear", "update"}
	if strings.Join(f.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", f.calls, want)
	}

	rows, err := c.ReadSummary(ctx)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Vendor != "Synoptek" || rows[0].Spend.Cents != 820000 || rows[0].Status != "Critical" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Spend.Cents != 50050 || rows[1].Share != 0.0527 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestWriteSummary_ExistingSheet(t *testing.T) {
	f := &fakeSheets{titles: []string{DefaultSheetName}}
	c := newTestClient(t, f)

	if _, err := c.WriteSummary(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	for _, call := range f.calls {
		if call == "add-sheet" {
			t.Fatal("sheet should not be created twice")
		}
	}
}

func TestWriteSummary_ClearFails(t *testing.T) {
	f := &fakeSheets{titles: []string{DefaultSheetName}, failOn: "clear"}
	c := newTestClient(t, f)

	_, err := c.WriteSummary(context.Background(), sampleSummary())
	if err == nil || !strings.Contains(err.Error(), "clear sheet") {
		t.Fatalf("expected clear error, got %v", err)
	}
}

func TestSummaryValues(t *testing.T) {
	values := summaryValues(sampleSummary())
	if len(values) != 4 {
		t.Fatalf("expected header, 2 rows and total, got %d", len(values))
	}
	if values[0][0] != "Vendor" || values[0][4] != "Status" {
		t.Errorf("unexpected header: %v", values[0])
	}
	if values[1][2] != 8200.0 || values[1][3] != 0.8632 {
		t.Errorf("unexpected row: %v", values[1])
	}
	if values[3][0] != totalLabel || values[3][2] != 9500.0 {
		t.Errorf("unexpected total row: %v", values[3])
	}
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		values  [][]any
		want    int
		wantErr bool
	}{
		{"empty", nil, 0, false},
		{"header only", [][]any{{"Vendor", "Category", "Spend", "Share", "Status"}}, 0, false},
		{"reordered columns", [][]any{
			{"Status", "Share", "Spend", "Category", "Vendor"},
			{"Acceptable", "0.1", "1,200.50", "cloud_services.storage", "Dropbox"},
			{"", "1", "1200.50", "", "Total"},
		}, 1, false},
		{"missing column", [][]any{{"Vendor", "Spend"}}, 0, true},
		{"bad spend", [][]any{
			{"Vendor", "Category", "Spend", "Share", "Status"},
			{"Dropbox", "x", "n/a", "0.1", ""},
		}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseSummary(tt.values)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rows) != tt.want {
				t.Fatalf("got %d rows, want %d", len(rows), tt.want)
			}
		})
	}
}

func TestParseSummary_ReorderedValues(t *testing.T) {
	rows, err := parseSummary([][]any{
		{"Status", "Share", "Spend", "Category", "Vendor"},
		{"Acceptable", "0.1", "1,200.50", "cloud_services.storage", "Dropbox"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := rows[0]
	if got.Vendor != "Dropbox" || got.Category != "cloud_services.storage" || got.Spend.Cents != 120050 || got.Share != 0.1 {
		t.Errorf("unexpected row: %+v", got)
	}
}
