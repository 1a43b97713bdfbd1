package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/callshield/internal/dbx"
	"github.com/dmitrijs2005/callshield/internal/server/repositories/community"
	"github.com/dmitrijs2005/callshield/internal/server/repositories/reputation"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Community(db dbx.DBTX) community.Repository
	Reputation(db dbx.DBTX) reputation.Repository
}
