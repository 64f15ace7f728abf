package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/standings/internal/config"
	"github.com/dyluth/standings/internal/printer"
)

// ConfigFile is the name of the generated configuration file.
const ConfigFile = "standings.yml"

//go:embed templates/*
var templatesFS embed.FS

// Options fills in the generated configuration.
type Options struct {
	Instance     string
	RedisURL     string // Default config.DefaultRedisURL
	DirectoryURL string
}

// Initialize writes standings.yml into dir.
// If force is true, an existing standings.yml is replaced.
func Initialize(dir string, force bool, opts Options) error {
	path := filepath.Join(dir, ConfigFile)

	if force {
		if err := handleForce(path); err != nil {
			return err
		}
	}

	content, err := render(opts)
	if err != nil {
		return err
	}

	// Validate before writing so a bad flag never leaves a broken file behind.
	if _, err := config.Parse(content, nil); err != nil {
		return fmt.Errorf("generated %s is invalid: %w", ConfigFile, err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// handleForce removes an existing standings.yml if --force was specified
func handleForce(path string) error {
	if _, err := os.Stat(path); err == nil {
		printer.Warning("Removing existing %s...\n", ConfigFile)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ConfigFile, err)
		}
	}
	return nil
}

func render(opts Options) ([]byte, error) {
	if opts.Instance == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	if opts.DirectoryURL == "" {
		return nil, fmt.Errorf("directory URL is required")
	}
	if opts.RedisURL == "" {
		opts.RedisURL = config.DefaultRedisURL
	}

	raw, err := templatesFS.ReadFile("templates/standings.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", ConfigFile, err)
	}
	tmpl, err := template.New(ConfigFile).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", ConfigFile, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", ConfigFile, err)
	}
	return buf.Bytes(), nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	printer.Success("Successfully initialized standings configuration!\n")
	printer.Println("\nCreated:")
	printer.Printf("  ✓ %s\n", ConfigFile)
	printer.Println("\nNext steps:")
	printer.Println("  1. Point directory.base_url at your directory service")
	printer.Println("  2. Adjust the reset and group intervals")
	printer.Println("  3. Run 'standings run' to start the engine")
}
