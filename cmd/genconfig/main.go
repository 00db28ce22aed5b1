// Command genconfig writes a YAML configuration template that the server
// loads through CONFIG_FILE.
//
//	go run ./cmd/genconfig [environment]
//
// The file is written to config/config.<environment>.yaml. Passwords are left
// blank; set them through DB_PASSWORD and REDIS_PASSWORD.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iRail/occupancy-api/config"
)

func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		fmt.Printf("Error building default config: %v\n", err)
		os.Exit(1)
	}
	cfg.Server.Environment = config.Environment(env)
	if cfg.Server.Environment == config.EnvProduction {
		cfg.Database.SSLMode = "require"
		cfg.Redis.UseTLS = true
	}

	if err := os.MkdirAll("config", 0o755); err != nil {
		fmt.Printf("Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	filename := filepath.Join("config", fmt.Sprintf("config.%s.yaml", env))
	f, err := os.Create(filename)
	if err != nil {
		fmt.Printf("Error creating config file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := config.WriteTemplate(f, cfg); err != nil {
		fmt.Printf("Error writing config file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully generated %s\n", filename)
}
