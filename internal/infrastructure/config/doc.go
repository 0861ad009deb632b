// Package config handles loading and validating PixelPanel configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading an optional .env file next to the config file
//   - Overriding with PIXELPANEL_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - The JWT secret and operator password hash should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/pixelpanel.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.URL)
package config
