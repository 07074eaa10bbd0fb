// Package redis connects to Redis with go-redis and exposes a readiness
// check. The service keeps short-lived OAuth state there.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	checks := map[string]func(context.Context) error{
//		"redis": redis.Healthcheck(client),
//	}
package redis
