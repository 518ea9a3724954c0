package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/photoproos/studio_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const organizationColumn = "organization_id"

// ErrOrganizationMismatch is raised when a row is created for an organization other than the caller's.
var ErrOrganizationMismatch = errors.New("row belongs to another organization")

// TenantGuardPlugin keeps every statement on a model with an organization_id column inside the
// organization carried by the context.
//
// Reads, updates and deletes get an organization_id filter unless one is already present.
// Creates are rejected when a row names a different organization.
// Raw SQL is not touched. Admin and internal callers opt out through context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	scoped := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
	}{
		{"tenant_guard:query", cb.Query().Before("gorm:query").Register},
		{"tenant_guard:row", cb.Row().Before("gorm:row").Register},
		{"tenant_guard:update", cb.Update().Before("gorm:update").Register},
		{"tenant_guard:delete", cb.Delete().Before("gorm:delete").Register},
	}
	for _, s := range scoped {
		if err := s.register(s.name, scopeToOrganization); err != nil {
			return err
		}
	}
	return cb.Create().Before("gorm:create").Register("tenant_guard:create", checkCreatedOrganization)
}

// guardedOrganization returns the organization a statement must stay in, and the column that holds it.
func guardedOrganization(db *gorm.DB) (string, *schema.Field) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil || db.Statement.Schema == nil {
		return "", nil
	}
	ctx := db.Statement.Context
	if shouldBypassTenantScope(ctx) {
		return "", nil
	}
	organizationId := organizationIdFromContext(ctx)
	if organizationId == "" {
		return "", nil
	}
	field := db.Statement.Schema.LookUpField(organizationColumn)
	if field == nil {
		return "", nil
	}
	return organizationId, field
}

func scopeToOrganization(db *gorm.DB) {
	organizationId, field := guardedOrganization(db)
	if field == nil || whereHasOrganizationID(db.Statement.Clauses["WHERE"]) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: field.DBName},
				Value:  organizationId,
			},
		},
	})
}

// checkCreatedOrganization fails the create when any row carries a foreign organization_id.
// Rows that leave it empty are left for the database constraints to judge.
func checkCreatedOrganization(db *gorm.DB) {
	organizationId, field := guardedOrganization(db)
	if field == nil {
		return
	}
	ctx := db.Statement.Context
	check := func(row reflect.Value) {
		v, zero := field.ValueOf(ctx, row)
		if zero {
			return
		}
		if got := fmt.Sprint(v); got != organizationId {
			_ = db.AddError(fmt.Errorf("%w: %s %q, caller %q", ErrOrganizationMismatch, db.Statement.Table, got, organizationId))
		}
	}

	rv := reflect.Indirect(db.Statement.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			check(reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		check(rv)
	}
}

func organizationIdFromContext(ctx context.Context) string {
	v, _ := ctx.Value(appctx.ContextKeyOrganizationId).(string)
	return v
}

func shouldBypassTenantScope(ctx context.Context) bool {
	for _, key := range []appctx.ContextKey{appctx.ContextKeySkipTenantScope, appctx.ContextKeyIsAdmin} {
		if v, ok := ctx.Value(key).(bool); ok && v {
			return true
		}
	}
	return false
}

func whereHasOrganizationID(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	return anyMentionsOrganization(w.Exprs)
}

func anyMentionsOrganization(exprs []clause.Expression) bool {
	for _, e := range exprs {
		if mentionsOrganization(e) {
			return true
		}
	}
	return false
}

func mentionsOrganization(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return isOrganizationColumn(v.Column)
	case clause.Neq:
		return isOrganizationColumn(v.Column)
	case clause.IN:
		return isOrganizationColumn(v.Column)
	case clause.AndConditions:
		return anyMentionsOrganization(v.Exprs)
	case clause.OrConditions:
		return anyMentionsOrganization(v.Exprs)
	case clause.Expr:
		// raw fragments such as Where("organization_id = ?", id)
		return strings.Contains(strings.ToLower(v.SQL), organizationColumn)
	default:
		return false
	}
}

func isOrganizationColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, organizationColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, organizationColumn)
	default:
		return false
	}
}
