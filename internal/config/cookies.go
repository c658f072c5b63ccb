package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cookie names used by the Gemini Web backend
const (
	CookiePSID   = "__Secure-1PSID"
	CookiePSIDTS = "__Secure-1PSIDTS"
)

// Cookies holds the Gemini Web session cookies
type Cookies struct {
	mu            sync.RWMutex
	Secure1PSID   string `json:"__Secure-1PSID"`
	Secure1PSIDTS string `json:"__Secure-1PSIDTS,omitempty"`
}

// Snapshot returns both cookies atomically
func (c *Cookies) Snapshot() (psid, psidts string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Secure1PSID, c.Secure1PSIDTS
}

// SetBoth updates both cookies atomically
func (c *Cookies) SetBoth(psid, psidts string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Secure1PSID = psid
	c.Secure1PSIDTS = psidts
}

// Update1PSIDTS replaces the rotating cookie
func (c *Cookies) Update1PSIDTS(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Secure1PSIDTS = value
}

// cookieListItem is one entry of a browser cookie export
type cookieListItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadCookies loads cookies from the cookies file
func LoadCookies() (*Cookies, error) {
	cookiesPath, err := GetCookiesPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cookiesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no cookies found. Import them first:\n  muralguide import-cookies <path-to-cookies.json>\nor extract them from a browser:\n  muralguide auto-login")
		}
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	return ParseCookies(data)
}

// ParseCookies accepts a browser export list [{name, value}] or a dict {name: value}
func ParseCookies(data []byte) (*Cookies, error) {
	var dictFormat map[string]string
	if err := json.Unmarshal(data, &dictFormat); err == nil {
		psid := dictFormat[CookiePSID]
		if psid == "" {
			return nil, fmt.Errorf("missing required cookie: %s", CookiePSID)
		}
		return &Cookies{Secure1PSID: psid, Secure1PSIDTS: dictFormat[CookiePSIDTS]}, nil
	}

	var listFormat []cookieListItem
	if err := json.Unmarshal(data, &listFormat); err == nil {
		cookies := &Cookies{}
		for _, item := range listFormat {
			switch item.Name {
			case CookiePSID:
				cookies.Secure1PSID = item.Value
			case CookiePSIDTS:
				cookies.Secure1PSIDTS = item.Value
			}
		}
		if cookies.Secure1PSID == "" {
			return nil, fmt.Errorf("missing required cookie: %s", CookiePSID)
		}
		return cookies, nil
	}

	return nil, fmt.Errorf("invalid cookies format: expected list [{name, value}] or dict {name: value}")
}

// SaveCookies writes cookies in list format with owner-only permissions
func SaveCookies(cookies *Cookies) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	psid, psidts := cookies.Snapshot()
	listFormat := []cookieListItem{{Name: CookiePSID, Value: psid}}
	if psidts != "" {
		listFormat = append(listFormat, cookieListItem{Name: CookiePSIDTS, Value: psidts})
	}

	data, err := json.MarshalIndent(listFormat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, "cookies.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}

	return nil
}

// ImportCookies validates a cookie export and stores it
func ImportCookies(sourcePath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source file not found: %s", sourcePath)
		}
		return fmt.Errorf("could not read file: %w", err)
	}

	cookies, err := ParseCookies(data)
	if err != nil {
		return err
	}

	return SaveCookies(cookies)
}

// ValidateCookies checks that the required cookie is present
func ValidateCookies(cookies *Cookies) error {
	if cookies == nil {
		return fmt.Errorf("cookies are nil")
	}
	if psid, _ := cookies.Snapshot(); psid == "" {
		return fmt.Errorf("missing required cookie: %s", CookiePSID)
	}
	return nil
}
