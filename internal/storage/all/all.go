// Package all registers every storage backend. Drivers blank-import it so
// storage.New can resolve any supported kind.
package all

import (
	_ "github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage/mssql"
	_ "github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage/postgres"
	_ "github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage/sqlite"
)
