// Package testdb opens throwaway in-memory databases for package tests.
package testdb

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/models"
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open migrates a fresh sqlite database and installs it as the global handle until the test ends.
//
// A single connection is kept open so the shared in-memory database survives the test,
// which also means code under test must use the transaction handle inside a transaction.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, seq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.InstallPlugins(db); err != nil {
		t.Fatalf("install plugins: %v", err)
	}
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	previous := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(previous)
		_ = sqlDB.Close()
	})
	return db
}

// Tenant is an organization with one client, ready for billing tests.
type Tenant struct {
	Ctx          context.Context
	Organization *models.Organization
	Client       *models.Client
}

// NewTenant creates an organization and a client and returns a context scoped to the organization.
func NewTenant(t testing.TB, name string) Tenant {
	t.Helper()
	ctx := context.Background()
	org, err := models.CreateOrganization(ctx, &models.NewOrganization{Name: name})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	ctx = utils.SetOrganizationIdInContext(ctx, org.ID)
	client, err := models.CreateClient(ctx, org.ID, &models.NewClient{
		Name:  name + " Client",
		Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
	})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	return Tenant{Ctx: ctx, Organization: org, Client: client}
}

// OpenInvoice creates and issues an invoice with a single line of totalCents.
func (tn Tenant) OpenInvoice(t testing.TB, totalCents int64) *models.Invoice {
	t.Helper()
	inv, err := models.CreateInvoice(tn.Ctx, tn.Organization.ID, &models.NewInvoice{
		ClientId: tn.Client.ID,
		LineItems: []models.NewLineItem{
			{Description: "Session", Quantity: 1, UnitCents: totalCents},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	inv, err = models.IssueInvoice(tn.Ctx, tn.Organization.ID, inv.ID)
	if err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	return inv
}
