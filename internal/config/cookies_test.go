package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantPSID   string
		wantPSIDTS string
		wantErr    bool
	}{
		{
			name:       "dict format",
			data:       `{"__Secure-1PSID": "psid", "__Secure-1PSIDTS": "psidts"}`,
			wantPSID:   "psid",
			wantPSIDTS: "psidts",
		},
		{
			name:     "dict format without PSIDTS",
			data:     `{"__Secure-1PSID": "psid"}`,
			wantPSID: "psid",
		},
		{
			name:    "dict format missing PSID",
			data:    `{"__Secure-1PSIDTS": "psidts"}`,
			wantErr: true,
		},
		{
			name:       "list format",
			data:       `[{"name": "__Secure-1PSID", "value": "psid"}, {"name": "__Secure-1PSIDTS", "value": "psidts"}]`,
			wantPSID:   "psid",
			wantPSIDTS: "psidts",
		},
		{
			name:     "list format with extra cookies",
			data:     `[{"name": "NID", "value": "x"}, {"name": "__Secure-1PSID", "value": "psid", "domain": ".google.com"}]`,
			wantPSID: "psid",
		},
		{
			name:    "list format missing PSID",
			data:    `[{"name": "NID", "value": "x"}]`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			data:    `not json`,
			wantErr: true,
		},
		{
			name:    "neither format",
			data:    `42`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies, err := ParseCookies([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseCookies() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCookies() error = %v", err)
			}
			psid, psidts := cookies.Snapshot()
			if psid != tt.wantPSID || psidts != tt.wantPSIDTS {
				t.Errorf("cookies = (%q, %q), want (%q, %q)", psid, psidts, tt.wantPSID, tt.wantPSIDTS)
			}
		})
	}
}

func TestValidateCookies(t *testing.T) {
	tests := []struct {
		name    string
		cookies *Cookies
		wantErr bool
	}{
		{"nil", nil, true},
		{"empty", &Cookies{}, true},
		{"psid only", &Cookies{Secure1PSID: "psid"}, false},
		{"both", &Cookies{Secure1PSID: "psid", Secure1PSIDTS: "ts"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCookies(tt.cookies)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCookies() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadCookies_FileNotExists(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	_, err := LoadCookies()
	if err == nil {
		t.Fatal("LoadCookies() expected error when file is missing")
	}
	if !strings.Contains(err.Error(), "import-cookies") {
		t.Errorf("error should explain how to import cookies: %v", err)
	}
}

func TestSaveAndLoadCookies(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	if err := SaveCookies(&Cookies{Secure1PSID: "psid", Secure1PSIDTS: "ts"}); err != nil {
		t.Fatalf("SaveCookies() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "cookies.json"))
	if err != nil {
		t.Fatalf("cookies file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("cookies file mode = %o, want 600", perm)
	}

	loaded, err := LoadCookies()
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if psid, ts := loaded.Snapshot(); psid != "psid" || ts != "ts" {
		t.Errorf("loaded cookies = (%q, %q)", psid, ts)
	}
}

func TestImportCookies(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if err := ImportCookies(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("ImportCookies() expected error for missing source")
	}

	src := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(src, []byte(`[{"name":"__Secure-1PSID","value":"imported"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ImportCookies(src); err != nil {
		t.Fatalf("ImportCookies() error = %v", err)
	}

	loaded, err := LoadCookies()
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if psid, _ := loaded.Snapshot(); psid != "imported" {
		t.Errorf("psid = %q, want imported", psid)
	}
}

func TestCookies_Update(t *testing.T) {
	c := &Cookies{Secure1PSID: "psid", Secure1PSIDTS: "old"}

	c.Update1PSIDTS("new")
	if _, ts := c.Snapshot(); ts != "new" {
		t.Errorf("PSIDTS = %q, want new", ts)
	}

	c.SetBoth("p2", "t2")
	if psid, ts := c.Snapshot(); psid != "p2" || ts != "t2" {
		t.Errorf("cookies = (%q, %q), want (p2, t2)", psid, ts)
	}
}
