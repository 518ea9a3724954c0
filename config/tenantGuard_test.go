package config

import (
	"context"
	"fmt"
	"testing"

	"github.com/photoproos/studio_backend/appctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type guardedRow struct {
	ID             int
	OrganizationId string
	Name           string
}

type sharedRow struct {
	ID   int
	Name string
}

func openGuardedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Use(NewTenantGuardPlugin()))
	require.NoError(t, db.AutoMigrate(&guardedRow{}, &sharedRow{}))
	require.NoError(t, db.Create(&[]guardedRow{
		{OrganizationId: "org-a", Name: "a1"},
		{OrganizationId: "org-a", Name: "a2"},
		{OrganizationId: "org-b", Name: "b1"},
	}).Error)
	require.NoError(t, db.Create(&sharedRow{Name: "s"}).Error)
	return db
}

func TestTenantGuardScopesQueries(t *testing.T) {
	db := openGuardedDB(t)
	orgA := appctx.Set(context.Background(), appctx.ContextKeyOrganizationId, "org-a")

	var rows []guardedRow
	require.NoError(t, db.WithContext(orgA).Find(&rows).Error)
	assert.Len(t, rows, 2)

	var other guardedRow
	err := db.WithContext(orgA).Where("name = ?", "b1").First(&other).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	res := db.WithContext(orgA).Model(&guardedRow{}).Where("1 = 1").Update("name", "renamed")
	require.NoError(t, res.Error)
	assert.Equal(t, int64(2), res.RowsAffected)

	var shared []sharedRow
	require.NoError(t, db.WithContext(orgA).Find(&shared).Error)
	assert.Len(t, shared, 1, "tables without organization_id are not scoped")
}

func TestTenantGuardBypass(t *testing.T) {
	db := openGuardedDB(t)
	orgA := appctx.Set(context.Background(), appctx.ContextKeyOrganizationId, "org-a")

	var count int64
	require.NoError(t, db.WithContext(appctx.Set(orgA, appctx.ContextKeyIsAdmin, true)).Model(&guardedRow{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	require.NoError(t, db.WithContext(appctx.Set(orgA, appctx.ContextKeySkipTenantScope, true)).Model(&guardedRow{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	var rows []guardedRow
	require.NoError(t, db.WithContext(orgA).Where("organization_id = ?", "org-b").Find(&rows).Error)
	assert.Len(t, rows, 1, "an explicit organization filter is left alone")
}

func TestTenantGuardRejectsForeignCreates(t *testing.T) {
	db := openGuardedDB(t)
	orgA := appctx.Set(context.Background(), appctx.ContextKeyOrganizationId, "org-a")

	require.NoError(t, db.WithContext(orgA).Create(&guardedRow{OrganizationId: "org-a", Name: "a3"}).Error)

	err := db.WithContext(orgA).Create(&guardedRow{OrganizationId: "org-b", Name: "b2"}).Error
	assert.ErrorIs(t, err, ErrOrganizationMismatch)

	err = db.WithContext(orgA).Create(&[]guardedRow{
		{OrganizationId: "org-a", Name: "a4"},
		{OrganizationId: "org-b", Name: "b3"},
	}).Error
	assert.ErrorIs(t, err, ErrOrganizationMismatch, "one foreign row fails the batch")

	require.NoError(t, db.WithContext(appctx.Set(orgA, appctx.ContextKeyIsAdmin, true)).
		Create(&guardedRow{OrganizationId: "org-b", Name: "b4"}).Error)
	require.NoError(t, db.WithContext(orgA).Create(&sharedRow{Name: "s2"}).Error)

	var count int64
	require.NoError(t, db.Model(&guardedRow{}).Where("organization_id = ?", "org-b").Count(&count).Error)
	assert.Equal(t, int64(2), count, "only the admin write reached org-b")
	require.NoError(t, db.Model(&guardedRow{}).Where("organization_id = ?", "org-a").Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
