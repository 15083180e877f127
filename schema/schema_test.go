package schema

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const actionName = "*Action(SiteID=US|Country=US|Currency=USD|Version=1193|CC=UTF-8)"

var wantColumns = []string{
	"Info",
	"Template=fx_category_template_EBAY_US",
	actionName,
	"*Category",
	"*Title",
	"C:Region Code (Region A, Region B, Region C)",
	"PicURL",
}

// headerWithCR mimics the marketplace export: BOM, header split by bare CR,
// a quoted name containing commas, trailing separators, then guidance rows.
func headerWithCR() []byte {
	body := "Info,Template=fx_category_template_EBAY_US,\r" +
		actionName + ",*Category,*Title,\r" +
		"\"C:Region Code (Region A, Region B, Region C)\",PicURL,,,\r\n" +
		"Info,>>> Guidance: fill in one row per item,,,\r" +
		"Info,>>> Another guidance row, with commas\r"
	return append([]byte{0xEF, 0xBB, 0xBF}, body...)
}

func writeTemplate(t *testing.T, dir, name string, data []byte, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseHeaderSplitByCarriageReturns(t *testing.T) {
	s, err := Parse(headerWithCR(), DefaultSentinel, DefaultActionIndex)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(s.Columns, wantColumns) {
		t.Errorf("Columns:\n got %q\nwant %q", s.Columns, wantColumns)
	}
	if s.ActionColumn() != actionName {
		t.Errorf("ActionColumn: got %q", s.ActionColumn())
	}
}

func TestParseLineEndingVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"lf", "A,B,\nC,D\nInfo,>>>x"},
		{"crlf", "A,B,\r\nC,D\r\nInfo,>>>x"},
		{"mixed", "A,\rB,\r\nC,\nD,,\rInfo,>>>x"},
		{"no sentinel", "A,B,C,D,,"},
	}
	want := []string{"A", "B", "C", "D"}
	for _, tt := range tests {
		s, err := Parse([]byte(tt.raw), DefaultSentinel, DefaultActionIndex)
		if err != nil {
			t.Errorf("%s: Parse: %v", tt.name, err)
			continue
		}
		if !reflect.DeepEqual(s.Columns, want) {
			t.Errorf("%s: got %q, want %q", tt.name, s.Columns, want)
		}
	}
}

func TestParseKeepsDuplicateColumns(t *testing.T) {
	s, err := Parse([]byte("A,B,*Action,B,A\r"), DefaultSentinel, DefaultActionIndex)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"A", "B", "*Action", "B", "A"}
	if !reflect.DeepEqual(s.Columns, want) {
		t.Errorf("got %q, want %q", s.Columns, want)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		actionIndex int
	}{
		{"empty", "", DefaultActionIndex},
		{"only bom and sentinel", "\xEF\xBB\xBFInfo,>>> guidance", DefaultActionIndex},
		{"only separators", ",,,\r\n", DefaultActionIndex},
		{"action index out of range", "A,B", DefaultActionIndex},
		{"empty action cell", "A,B,,D", DefaultActionIndex},
		{"negative action index", "A,B,C", -1},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.raw), DefaultSentinel, tt.actionIndex)
		if !IsMalformed(err) {
			t.Errorf("%s: expected MalformedTemplateError, got %v", tt.name, err)
		}
	}
}

func TestParseConfigurableActionIndex(t *testing.T) {
	s, err := Parse([]byte("*Action,Info,Other"), DefaultSentinel, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.ActionColumn() != "*Action" {
		t.Errorf("ActionColumn: got %q", s.ActionColumn())
	}
}

func TestLoaderPicksNewestTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeTemplate(t, dir, "eBay-category-listing-template-2023.csv", []byte("Old,Old,*Action\r"), now.Add(-time.Hour))
	newest := writeTemplate(t, dir, "eBay-category-listing-template-2024.csv", headerWithCR(), now)
	writeTemplate(t, dir, "unrelated.csv", []byte("X,Y,Z"), now.Add(time.Hour))

	l := NewLoader(dir)
	s, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Path != newest {
		t.Errorf("Path: got %q, want %q", s.Path, newest)
	}
	if !reflect.DeepEqual(s.Columns, wantColumns) {
		t.Errorf("Columns: got %q", s.Columns)
	}
}

func TestLoaderCachesFirstLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "eBay-category-listing-template-a.csv", headerWithCR(), time.Now())

	l := NewLoader(dir)
	first, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := l.Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second {
		t.Error("expected cached schema on second Load")
	}
}

func TestLoaderTemplateNotFound(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load()
	if !IsTemplateNotFound(err) {
		t.Fatalf("expected TemplateNotFoundError, got %v", err)
	}
}

func TestLoaderMalformedCarriesPath(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "eBay-category-listing-template-x.csv", []byte("Info,>>> nothing"), time.Now())

	_, err := NewLoader(dir).Load()
	me, ok := err.(*MalformedTemplateError)
	if !ok {
		t.Fatalf("expected *MalformedTemplateError, got %v", err)
	}
	if me.Path != path {
		t.Errorf("Path: got %q, want %q", me.Path, path)
	}
}
