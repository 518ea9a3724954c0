package utils

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/photoproos/studio_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db
// (organization_id is used in query's WHERE, may return NotFoundError)
func FetchModel[T any](ctx context.Context, organizationId string, id int, associations ...string) (*T, error) {
	return FetchModelTx[T](config.GetDB().WithContext(ctx), organizationId, id, false, associations...)
}

// FetchModelTx is FetchModel inside an open transaction; forUpdate takes a row lock.
func FetchModelTx[T any](tx *gorm.DB, organizationId string, id int, forUpdate bool, associations ...string) (*T, error) {
	dbCtx := tx.Where("organization_id = ?", organizationId)
	if forUpdate {
		dbCtx = dbCtx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(HumanTypeName[T]())
		}
		return nil, err
	}
	return &result, nil
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

// HumanTypeName turns CreditNote into "credit note" for error messages.
func HumanTypeName[T any]() string {
	name := GetTypeName[T]()
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
