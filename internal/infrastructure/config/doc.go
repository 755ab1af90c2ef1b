// Package config handles loading and validating Croquetia broker configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a dotenv file into the process environment
//   - Overriding with environment variables
//   - Validation of required fields
//
// Environment variables BROKER_PORT, FIRESTORM_HOSTNAME and FIRESTORM_PORT
// keep their historical names. Everything else uses the CROQUETIA_ prefix.
//
// Usage:
//
//	if err := config.LoadDotEnv(".env", false); err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.FirestormURL())
package config
