// Package config loads and validates the wyvernd configuration.
//
// Precedence is environment over YAML file over built-in defaults. The
// WYVERN_* overrides exist for secrets (broker credentials, tokens, JWT
// material) and the per-install paths; keep everything else in the file,
// and keep the file at mode 0600 since it may hold broker credentials.
//
//	cfg, err := config.Load("/etc/wyvern/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// Validation collects every problem into one error, so a misconfigured
// daemon reports the full list on its first failed start.
package config
