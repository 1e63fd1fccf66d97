/*
Package log provides structured logging for accessmesh using zerolog.

It wraps zerolog to give every shard, coordinator, and background loop a
JSON-structured logger with component-specific child loggers, a
configurable level, and helper functions for the common cases.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	log.Info("shard started")

	graphLog := log.WithComponent("graph")
	graphLog.Debug().Str("vertex", "g1").Msg("edge inserted")

	shardLog := log.WithShard("user", "shard-03")
	shardLog.Warn().Msg("flush retry")

# Context loggers

  - WithComponent: tag logs with the owning package (graph, access,
    eventbuffer, coordinator, split, ...)
  - WithShard: tag logs with (kind, shardID) for a sharded operation
  - WithEventID: tag logs with the event being applied or persisted
  - WithOperation: tag logs with the public operation name, read by the
    metrics middleware described in Design Note §9

Never log secrets, join tokens, or raw event payload values that may
carry entity identifiers the caller considers sensitive — log ids, not
payloads.
*/
package log
