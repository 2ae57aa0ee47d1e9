// Package all links every store backend.
package all

import (
	_ "github.com/chararch/starbatch/store/mssql"
	_ "github.com/chararch/starbatch/store/mysql"
	_ "github.com/chararch/starbatch/store/postgres"
	_ "github.com/chararch/starbatch/store/sqlite"
)
