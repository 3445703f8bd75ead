// Command generate-config writes a config.yaml populated with every default,
// ready to be edited.
package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/memories/internal/config"
)

const header = `# Memories configuration
# Secrets are read from the environment, never from this file:
#   S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY  storage.backend: s3
#   ED25519_PUBKEY                          features.authentication.type: ed25519
#   CLERK_API                               features.authentication.type: clerk

`

func main() {
	out := flag.String("o", "config.example.yaml", `output file, "-" for stdout`)
	flag.Parse()

	data, err := render()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}

	if *out == "-" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", *out)
}

func render() ([]byte, error) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("defaults do not validate: %w", err)
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return append([]byte(header), body...), nil
}
