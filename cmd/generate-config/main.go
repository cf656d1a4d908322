package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/the-pantry/internal/config"
)

const header = "# The Pantry draft service configuration example\n# Copy this file to config.yaml (or config.toml) and customize as needed\n# S3 credentials are read from S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY\n\n"

func main() {
	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(outputFile), ".toml") {
		format = "toml"
	}
	if len(os.Args) > 2 {
		format = os.Args[2]
	}

	output, err := render(config.Default(), format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating config: %v\n", err)
		os.Exit(1)
	}

	if outputFile == "-" {
		fmt.Print(output)
		return
	}
	if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", outputFile)
}

// render encodes cfg as yaml or toml, prefixed with the example header.
func render(cfg *config.Config, format string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(header)

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
	case "toml":
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
	return buf.String(), nil
}
