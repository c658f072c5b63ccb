package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/muralguide/internal/config"
)

var importCookiesCmd = &cobra.Command{
	Use:   "import-cookies <path>",
	Short: "Import Gemini Web cookies from a file",
	Long: `Import authentication cookies for the webgemini backend from a JSON file.

The cookies file should contain either:
1. A list of objects: [{"name": "__Secure-1PSID", "value": "..."}]
2. A simple dictionary: {"__Secure-1PSID": "..."}

Required cookie: __Secure-1PSID
Optional cookie: __Secure-1PSIDTS`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImportCookies(cmd, args[0])
	},
}

func runImportCookies(cmd *cobra.Command, sourcePath string) error {
	if err := config.ImportCookies(sourcePath); err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}

	cookiesPath, _ := config.GetCookiesPath()
	fmt.Fprintf(cmd.OutOrStdout(), "Cookies imported successfully to %s\n", cookiesPath)
	return nil
}
