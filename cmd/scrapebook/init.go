package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/config"
)

//go:embed templates/scrapebook.yaml
var configTemplate embed.FS

// templatePath is the embedded configuration template.
const templatePath = "templates/scrapebook.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new scrapebook configuration file",
		Long: `Initialize creates a new ` + config.DefaultConfigFile + ` configuration file in the current directory.

The generated file includes:
- Default request headers
- Commented examples for site-specific cookies, headers and user agents
- Example recipes for scripted browser sessions

Examples:
  # Create .scrapebook.yaml in current directory
  scrapebook init

  # Create the file in the XDG config directory
  scrapebook init --xdg

  # Create config file at a specific path
  scrapebook init -o myconfig.yaml

  # Force overwrite existing file
  scrapebook init --force`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	// -o and -f are taken by global flags, so only long names here.
	cmd.Flags().String("path", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().Bool("xdg", false,
		"Write the file to the XDG config directory instead")
	cmd.Flags().Bool("force", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("path")
	if err != nil {
		return err
	}

	useXDG, err := cmd.Flags().GetBool("xdg")
	if err != nil {
		return err
	}
	if useXDG {
		outputPath = filepath.Join(config.XDGConfigDir(), config.XDGConfigFile)
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Site settings may hold cookies, so keep the file private.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Cookies, headers and user agents per site")
	fmt.Fprintln(out, "  - robots.txt politeness")
	fmt.Fprintln(out, "  - Recipes for `scrapebook run`")

	return nil
}
