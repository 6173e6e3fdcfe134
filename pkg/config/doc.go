/*
Package config loads fsbatch settings from a file and the environment.

	+-------------+     +-------------+     +-------------+
	|   Default   | --> | file parser | --> | FSBATCH_*   |
	|             |     | yaml/json/  |     | environment |
	|             |     | hcl         |     |             |
	+-------------+     +-------------+     +------+------+
	                                               |
	                                        +------+------+
	                                        |  Validate   |
	                                        +-------------+

🎯 Purpose:
- One Config for the CLI and the desktop service
- Format picked by file extension through registered Parsers
- Environment overrides for every field, optionally from a .env file
- Struct tag validation plus ignore-pattern syntax checks

🔍 Example:

	cfg, err := config.Load(ctx, afero.NewOsFs(), ".fsbatch.yaml")
	if err != nil {
		return err
	}
	policy, interactive := cfg.ConflictDecision()
*/
package config
