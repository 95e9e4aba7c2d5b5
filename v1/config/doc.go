// Package config holds the engine's global property map.
//
// Serde factories read it through two accessors: OriginalsWithPrefix, which
// extracts a component namespace such as SchemaRegistryPrefix, and GetString
// for single top-level keys such as SchemaRegistryURLProperty.
//
//	cfg, err := config.Load("/etc/ksql/ksql.yaml")
//	if err != nil {
//		return err
//	}
//	cfg = cfg.ApplyEnv("KSQL_")
//
//	srProps := cfg.OriginalsWithPrefix(config.SchemaRegistryPrefix)
package config
