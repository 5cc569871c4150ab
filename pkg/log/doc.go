/*
Package log provides structured logging for Catena using zerolog.

A single global Logger is configured once at startup with Init. Components
derive child loggers carrying identifying fields:

	logger := log.WithComponent("manager")
	logger = log.WithChainID(logger, chain.ID)
	logger.Info().Str("flavour", flavour).Msg("Adding node")

Output is human-readable console text by default, or one JSON object per line
when Config.JSONOutput is set:

	{"level":"info","component":"manager","chain_id":"…","time":"…","message":"Chain created"}

Key material, cloud authentication and decrypted keys are never logged.
*/
package log
