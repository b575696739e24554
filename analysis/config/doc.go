/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then
[LoadGlobal]() to load the global config.

A config file is in yaml format. The top-level fields can be any of the fields
defined in the Config struct type, for example:

	log-level: 4
	report-format: json
	enabled-lints:
	  - missing_owner_check
	  - duplicate_mutable_accounts
	test-path-patterns:
	  - "tests/"
	suppressions:
	  - lint: cpi_no_result
	    file: "programs/vault/.*"

# Suppressions

The config uses [Suppression] to silence specific diagnostics by lint name,
file and message. An important feature of suppressions is that their string
specifications are seen as regexes if they can be compiled to regexes,
otherwise they are plain strings.
*/
package config
