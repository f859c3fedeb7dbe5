package coldstore

// schemaStatements are executed by Init, in order, and must be idempotent.
// Tables use ClickHouse's MergeTree family since writes are append-only and
// queries are time-ranged scans, never point updates.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS metric_samples (
		metric_name String,
		venue String,
		instrument String,
		timestamp DateTime64(3),
		value Decimal(38, 18),
		zscore Nullable(Decimal(38, 18))
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(timestamp)
	ORDER BY (venue, instrument, metric_name, timestamp)`,

	`CREATE TABLE IF NOT EXISTS alert_events (
		id String,
		alert_type String,
		status String,
		priority String,
		severity String,
		venue String,
		instrument String,
		trigger_metric String,
		trigger_value Decimal(38, 18),
		trigger_threshold Decimal(38, 18),
		comparison String,
		zscore_value Nullable(Decimal(38, 18)),
		zscore_threshold Nullable(Decimal(38, 18)),
		triggered_at DateTime64(3),
		resolved_at Nullable(DateTime64(3)),
		escalated UInt8,
		escalated_at Nullable(DateTime64(3)),
		duration_seconds Float64,
		resolution_type Nullable(String),
		resolution_value Nullable(Decimal(38, 18)),
		peak_value Decimal(38, 18),
		peak_at DateTime64(3),
		recorded_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(triggered_at)
	ORDER BY (venue, instrument, alert_type, triggered_at)`,

	`CREATE TABLE IF NOT EXISTS gaps (
		venue String,
		instrument String,
		gap_start DateTime64(3),
		gap_end DateTime64(3),
		duration_ms Int64,
		reason String,
		sequence_before Int64,
		sequence_after Int64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(gap_start)
	ORDER BY (venue, instrument, gap_start)`,
}
