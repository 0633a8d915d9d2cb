package clickhouse

import "fmt"

const (
	RowsTable        = "merged_rows"
	PredictionsTable = "predictions"
)

// ArchiveSchema returns the DDL for the archive tables in database.
// merged_rows is a ReplacingMergeTree so re-archived windows collapse on ts.
func ArchiveSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts           DateTime64(3, 'UTC'),
			open         Float64,
			high         Float64,
			low          Float64,
			close        Float64,
			market_cap   Float64,
			total_volume Float64,
			inserted_at  DateTime64(3, 'UTC') DEFAULT now64(3)
		) ENGINE = ReplacingMergeTree(inserted_at)
		PARTITION BY toYYYYMM(ts)
		ORDER BY ts`, database, RowsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			id          String,
			computed_at DateTime64(3, 'UTC'),
			value       Float64,
			window_end  DateTime64(3, 'UTC'),
			rows        UInt32
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(computed_at)
		ORDER BY (computed_at, id)`, database, PredictionsTable),
	}
}
