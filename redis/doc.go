// Package redis wraps go-redis with the service's logging, configuration
// conventions and component lifecycle.
//
// Besides the plain client it offers two helpers used by the speaker
// registry: HashStore, a JSON-encoded hash keyed per owner, and Locker, a
// SET NX lease released with a compare-and-delete script.
//
//	client, _ := redis.New(cfg, log)
//	profiles := redis.NewHashStore[speaker.Profile](client, "speakers")
//	locks := redis.NewLocker(client, "speakers:lock", 30*time.Second)
package redis
