package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Per-test in-memory database; a single connection serializes transactions
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.GamificationActor{},
		&models.CooldownRecord{},
		&models.MiningTask{},
		&models.RedemptionRequest{},
		&models.PointLedgerEntry{},
		&models.GamificationSettingsRecord{},
	))
	return db
}

type fixture struct {
	db          *gorm.DB
	config      *ConfigStore
	ledger      *PointLedger
	guard       *CooldownGuard
	catalog     *MiningTaskCatalog
	actions     *ActionService
	redemptions *RedemptionWorkflow
	actors      *ActorService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	config := NewConfigStore(db)
	_, err := config.Load(context.Background())
	require.NoError(t, err)

	ledger := NewPointLedger(db, config)
	guard := NewCooldownGuard()
	f := &fixture{
		db:          db,
		config:      config,
		ledger:      ledger,
		guard:       guard,
		catalog:     NewMiningTaskCatalog(db, ledger, guard),
		actions:     NewActionService(db, config, ledger, guard),
		redemptions: NewRedemptionWorkflow(db, config, ledger),
		actors:      NewActorService(db, config, ledger),
	}
	require.NoError(t, f.catalog.SyncFromSettings(context.Background(), config.Settings()))
	return f
}

// withSettings applies a modification to the current settings through the admin path.
func (f *fixture) withSettings(t *testing.T, mutate func(*GamificationSettings)) {
	t.Helper()
	s := f.config.Settings()
	mutate(&s)
	_, err := f.config.Update(context.Background(), s, "test-admin")
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, actorID string) int64 {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), actorID)
	require.NoError(t, err)
	return b
}
