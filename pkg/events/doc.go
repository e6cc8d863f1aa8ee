// Package events defines the platform event vocabulary and the
// in-process bus that carries events from producers to consumers.
//
// An Envelope wraps one occurrence on the platform (a token creation, a
// burn, a factory pause) with a unique ID, a timestamp, and the
// event-specific payload. Builders such as NewTokenCreated construct
// envelopes with the documented payload shape; the chain watcher and
// the replay tool POST raw events to the ingestion endpoint instead.
//
// The Bus fans envelopes out to registered Handlers. Publishing never
// blocks: a full buffer drops the envelope and increments a counter, so
// a slow consumer cannot stall the event producer.
//
// Usage:
//
//	bus := events.NewBus(256, logger, metrics)
//	bus.Subscribe(dispatcher)
//	bus.Start(ctx)
//	defer bus.Close(10 * time.Second)
//
//	bus.Publish(events.NewTokenCreated(addr, creator, "Moon", "MOON", 7, "1000000", "", txHash, ledger))
package events
