// AI Shield screens text bound for AI tools for sensitive data and decides, per user role
// and tool, whether it may be forwarded as is, forwarded masked, or blocked.
//
// Usage:
//
//	# Start the HTTP API
//	aishield serve --config configs/config.yaml
//
//	# Scan a file of prompts offline
//	aishield scan --input prompts.csv --ceiling internal --output report.jsonl
//
//	# Export the audit log
//	aishield export --format parquet --output audit.parquet
package main

func main() {
	Execute()
}
