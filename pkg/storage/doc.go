// Package storage provides shared database infrastructure: PostgreSQL and
// Redis connection setup, a versioned migration runner, and driver error
// classification helpers.
//
// Each domain package owns its schema and declares its migrations as a
// []storage.Migration, applied through storage.RunMigrations with a
// package-specific tracking table:
//
//	if err := storage.RunMigrations(ctx, db, "tenants_migrations", tenants.GetMigrations()); err != nil {
//		return err
//	}
package storage
