package db

import (
	"fmt"
	"reflect"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
)

// RegisterCallbacks stamps created/modified columns on every models.Auditable.
// The actor comes from the statement context (models.WithActor) and falls
// back to "System".
func RegisterCallbacks(gdb *gorm.DB) error {
	if err := gdb.Callback().Create().Before("gorm:create").Register("loan_tracker:stamp_created", stampCreated); err != nil {
		return fmt.Errorf("register create stamp: %w", err)
	}
	if err := gdb.Callback().Update().Before("gorm:update").Register("loan_tracker:stamp_modified", stampModified); err != nil {
		return fmt.Errorf("register update stamp: %w", err)
	}
	return nil
}

func actorIdentity(tx *gorm.DB) string {
	if a, ok := models.ActorFrom(tx.Statement.Context); ok {
		return a.Identity()
	}
	return models.SystemActor
}

func skipStamps(tx *gorm.DB) bool {
	return tx.Error != nil || tx.Statement.Schema == nil || tx.Statement.SkipHooks
}

// eachAuditable calls fn for the statement's model, or for every element
// when the model is a slice.
func eachAuditable(tx *gorm.DB, fn func(models.Auditable)) {
	visit := func(v reflect.Value) {
		v = reflect.Indirect(v)
		if v.Kind() != reflect.Struct || !v.CanAddr() {
			return
		}
		if a, ok := v.Addr().Interface().(models.Auditable); ok {
			fn(a)
		}
	}
	rv := tx.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			visit(rv.Index(i))
		}
	case reflect.Struct:
		visit(rv)
	}
}

func stampCreated(tx *gorm.DB) {
	if skipStamps(tx) {
		return
	}
	at, by := tx.NowFunc(), actorIdentity(tx)
	eachAuditable(tx, func(a models.Auditable) { a.StampCreated(at, by) })
}

func stampModified(tx *gorm.DB) {
	if skipStamps(tx) {
		return
	}
	at, by := tx.NowFunc(), actorIdentity(tx)
	eachAuditable(tx, func(a models.Auditable) { a.StampModified(at, by) })
	// map updates never read the model's fields
	if tx.Statement.Schema.LookUpField("modified_by") != nil {
		tx.Statement.SetColumn("modified_by", by, true)
	}
	// creation stamps are written once
	tx.Statement.Omits = append(tx.Statement.Omits, "created_at", "created_by")
}
