// Package all registers every storage backend.
package all

import (
	_ "numfix/internal/storage/mssql"
	_ "numfix/internal/storage/postgres"
	_ "numfix/internal/storage/sqlite"
)
