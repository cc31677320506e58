// Package polyload loads a directory of delimited files into several
// heterogeneous databases at once.
//
// Every file is streamed in fixed-size batches. Each batch is handed to all
// configured sinks concurrently and the run continues when one sink fails;
// failures are attributed to the sink, table and batch that produced them
// and reported in the run summary.
//
// # Sinks
//
//	postgres     - relational tables via a pgx pool, one transaction per batch
//	sqlserver    - relational tables via database/sql
//	mysql        - relational tables via database/sql
//	clickhouse   - MergeTree tables via native batches
//	mongodb      - one collection per table
//	neo4j        - one node label per table
//
// # Key Packages
//
//	pkg/source        - CSV discovery and batched reading
//	pkg/sink          - sink contract, registry and implementations
//	pkg/fanout        - concurrent per-batch dispatch
//	internal/pipeline - sequential orchestration and run summary
//	internal/query    - read-only HTTP query API
//	pkg/config        - configuration loading and validation
//	pkg/errors        - structured error handling
//	pkg/logger        - structured logging
//	pkg/metrics       - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing
//
// # Quick Start
//
//	polyload config init polyload.yaml
//	polyload check --config polyload.yaml
//	polyload run --config polyload.yaml --dir data --download
package polyload
