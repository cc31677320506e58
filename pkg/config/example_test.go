package config_test

import (
	"fmt"

	"github.com/ajitpratap0/polyload/pkg/config"
)

// ExampleDefault demonstrates the configuration used when no file is given.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Batch Size: %d\n", cfg.BatchSize)
	fmt.Printf("On Parse Error: %s\n", cfg.OnParseError)
	for _, s := range cfg.EnabledSinks() {
		fmt.Printf("%s (%s)\n", s.Name, s.Type)
	}

	// Output:
	// Batch Size: 1000
	// On Parse Error: abort
	// postgres (postgres)
	// mongodb (mongodb)
	// neo4j (neo4j)
	// clickhouse (clickhouse)
	// mssql (sqlserver)
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.BatchSize = 0

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}

	// Output:
	// config: batch_size must be positive
}

// ExampleConfig_EffectiveConcurrency shows the default fan-out width.
func ExampleConfig_EffectiveConcurrency() {
	cfg := config.Default()
	fmt.Println(cfg.EffectiveConcurrency(len(cfg.EnabledSinks())))

	cfg.Concurrency = 2
	fmt.Println(cfg.EffectiveConcurrency(len(cfg.EnabledSinks())))

	// Output:
	// 5
	// 2
}
