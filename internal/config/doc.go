// Package config loads the configuration of the MIBEL panel tools.
//
// # Configuration Sources
//
// Configuration is assembled in three layers, later layers winning:
//
//	1. Default() values
//	2. A YAML file (mibel.yaml, configs/mibel.yaml, or the -config flag)
//	3. Environment variables prefixed with MIBEL_
//
// Environment variables follow the section structure:
//
//	MIBEL_STORE_DRIVER=postgres
//	MIBEL_STORE_DSN=postgres://localhost/mibel
//	MIBEL_BUILD_COUNTRIES=ES,PT
//	MIBEL_EXPORT_FORMAT=csv
//	MIBEL_LOGGING_LEVEL=debug
//
// Source table specs, location groupings and the policy window are only
// read from the YAML file:
//
//	build:
//	  policy:
//	    name: iberian_exception
//	    start: 2022-06-15T00:00:00Z
//	    end: 2024-01-01T00:00:00Z
//	    countries: [ES, PT]
//	  sources:
//	    - name: prices
//	      kind: country
//	      family: price_eur_mwh
//	      timestamps: local
//	      table:
//	        table: prices_day_ahead
//	        time_column: timestamp
//	        key_column: country
//	        value_column: price_eur_mwh
//	        offset_column: utc_offset_s
//
// # Path Management
//
// Paths lays out data/raw/omie, data/staging, data/processed and logs under
// one base directory, the executable directory by default.
package config
