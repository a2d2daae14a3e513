// Package redis connects to Redis with go-redis and exposes a readiness probe.
//
// Connect retries the initial ping so processes can start alongside the
// server; Healthcheck plugs into the HTTP readiness endpoint:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redisstore.New(client, redisstore.WithPrefix(cfg.QueuePrefix))
//	ready := redis.Healthcheck(client)
//
// Errors returned by Connect join a package sentinel with the driver error,
// so errors.Is works against both.
package redis
