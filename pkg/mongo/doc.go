// Package mongo connects to MongoDB with the official v2 driver.
//
// Config is populated from MONGODB_* environment variables. Connect retries
// until the server answers a ping, and Healthcheck exposes the same ping as
// a readiness check.
//
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
package mongo
