package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/muralguide/internal/browser"
	"github.com/diogo/muralguide/internal/config"
)

var (
	autoLoginBrowser string
	autoLoginList    bool
)

var autoLoginCmd = &cobra.Command{
	Use:   "auto-login",
	Short: "Extract Gemini Web cookies from a browser",
	Long: `Extract the Gemini authentication cookies used by the webgemini backend
directly from your browser's cookie store.

Supported browsers: ` + SupportedBrowsersHelp() + `

IMPORTANT:
- Close the browser before running this command to avoid database locks
- You must be logged into gemini.google.com in the browser
- On macOS, you may be prompted for keychain access

Examples:
  muralguide auto-login                 # Auto-detect browser
  muralguide auto-login -B firefox      # Extract from Firefox
  muralguide auto-login --list          # List available browsers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if autoLoginList {
			return runListBrowsers(ctx, cmd.OutOrStdout())
		}
		return runAutoLogin(ctx, cmd.OutOrStdout(), autoLoginBrowser)
	},
}

func init() {
	autoLoginCmd.Flags().StringVarP(&autoLoginBrowser, "browser", "B", "auto",
		"Browser to extract cookies from ("+SupportedBrowsersHelp()+", auto)")
	autoLoginCmd.Flags().BoolVarP(&autoLoginList, "list", "l", false,
		"List available browsers with cookie stores")
}

func runAutoLogin(ctx context.Context, out io.Writer, browserName string) error {
	targetBrowser, err := browser.ParseBrowser(browserName)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Extracting cookies from browser...")
	fmt.Fprintln(out, "Note: If the browser is open, you may encounter database lock errors.")
	fmt.Fprintln(out)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := browser.ExtractGeminiCookies(ctx, targetBrowser)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}

	if err := config.ValidateCookies(result.Cookies); err != nil {
		return fmt.Errorf("extracted cookies are invalid: %w", err)
	}
	if err := config.SaveCookies(result.Cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	cookiesPath, _ := config.GetCookiesPath()
	psid, psidts := result.Cookies.Snapshot()

	fmt.Fprintf(out, "Successfully extracted cookies from %s\n", result.BrowserName)
	fmt.Fprintf(out, "Cookies saved to: %s\n\n", cookiesPath)
	fmt.Fprintln(out, "Extracted cookies:")
	fmt.Fprintf(out, "  __Secure-1PSID:   %s...\n", truncateValue(psid, 20))
	if psidts != "" {
		fmt.Fprintf(out, "  __Secure-1PSIDTS: %s...\n", truncateValue(psidts, 20))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "You can now run 'muralguide -b webgemini chat'.")
	return nil
}

func runListBrowsers(ctx context.Context, out io.Writer) error {
	browsers := browser.ListAvailableBrowsers(ctx)

	if len(browsers) == 0 {
		fmt.Fprintln(out, "No browsers with cookie stores found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Supported browsers:")
		for _, b := range browser.AllSupportedBrowsers() {
			fmt.Fprintf(out, "  - %s\n", b)
		}
		return nil
	}

	fmt.Fprintln(out, "Available browsers with cookie stores:")
	for _, b := range browsers {
		fmt.Fprintf(out, "  - %s\n", b)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Use 'muralguide auto-login -B <browser>' to extract cookies from a specific browser.")
	return nil
}

func truncateValue(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// SupportedBrowsersHelp returns a comma separated list of supported browsers
func SupportedBrowsersHelp() string {
	browsers := browser.AllSupportedBrowsers()
	names := make([]string, len(browsers))
	for i, b := range browsers {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}
