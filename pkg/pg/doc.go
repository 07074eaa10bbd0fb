// Package pg opens a pgx connection pool and applies goose migrations.
//
// Config is populated from PG_* environment variables. Connect retries until
// the database answers a ping or the attempts are exhausted. Migrate runs
// migrations from any fs.FS, normally an embedded directory that ships with
// the binary:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil {
//		return err
//	}
//
// Errors from both are joined with sentinel values so callers can match them
// with errors.Is.
package pg
