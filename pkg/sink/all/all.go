// Package all registers every built-in sink variant. Import it for its
// side effects:
//
//	import _ "github.com/ajitpratap0/polyload/pkg/sink/all"
package all

import (
	_ "github.com/ajitpratap0/polyload/pkg/sink/clickhouse"
	_ "github.com/ajitpratap0/polyload/pkg/sink/mongodb"
	_ "github.com/ajitpratap0/polyload/pkg/sink/neo4j"
	_ "github.com/ajitpratap0/polyload/pkg/sink/postgres"
	_ "github.com/ajitpratap0/polyload/pkg/sink/sqlrow"
)
