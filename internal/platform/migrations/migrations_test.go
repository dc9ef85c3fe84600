package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRun_QuandoBancoVazio_DeveCriarTabelaVotos(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(db))

	assert.True(t, db.Migrator().HasTable("votos"))
	assert.True(t, db.Migrator().HasColumn("votos", "votante_id"))
}

func TestRun_QuandoExecutadoDuasVezes_DeveSerIdempotente(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(db))
	assert.NoError(t, Run(db))
}

func TestRun_QuandoDBNulo_DeveFalhar(t *testing.T) {
	assert.Error(t, Run(nil))
}
