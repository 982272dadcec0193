package cmd

import (
	"fmt"
	"sort"

	"github.com/joho/godotenv"

	"github.com/chatlings/internal/aiconnectors"
	"github.com/chatlings/internal/config"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required settings that are missing
	Present  map[string]string // Settings that are set (secrets masked)
	Warnings []string          // Non-fatal warnings
}

// CheckConfig reports which settings are present on the loaded config
func CheckConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	if cfg.Database.URL == "" {
		result.Missing = append(result.Missing, "database.url")
	} else {
		result.Present["database.url"] = maskSecret(cfg.Database.URL)
	}

	result.Present["ai.provider"] = string(cfg.AI.Provider)
	result.Present["ai.model"] = cfg.AI.Model
	switch cfg.AI.Provider {
	case aiconnectors.ProviderOllama:
		if cfg.AI.BaseURL == "" {
			result.Missing = append(result.Missing, "ai.base_url")
		} else {
			result.Present["ai.base_url"] = cfg.AI.BaseURL
		}
	default:
		if cfg.AI.APIKey == "" {
			result.Missing = append(result.Missing, "ai.api_key")
		} else {
			result.Present["ai.api_key"] = maskSecret(cfg.AI.APIKey)
		}
	}

	if cfg.Redis.Addr == "" {
		result.Warnings = append(result.Warnings, "redis.addr not set, personalized conversations will not be cached")
	} else {
		result.Present["redis.addr"] = cfg.Redis.Addr
		if cfg.Redis.Password != "" {
			result.Present["redis.password"] = maskSecret(cfg.Redis.Password)
		}
	}

	if err := config.Validate(cfg); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(result *ConfigCheckResult) {
	fmt.Println("=== Configuration Check ===")
	fmt.Println("")

	if len(result.Missing) > 0 {
		fmt.Println("❌ Missing required settings:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println("✓ Configured settings:")
		for _, k := range keys {
			fmt.Printf("   - %s = %s\n", k, result.Present[k])
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("⚠ Warning: %s\n", w)
	}

	if len(result.Missing) == 0 {
		fmt.Println("✓ All required configuration is present")
	}

	fmt.Println("============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	return godotenv.Overload(filename)
}
