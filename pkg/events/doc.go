/*
Package events distributes orchestrator events after each committed change.

The Broker fans events out to in-process subscribers through buffered
channels; a slow subscriber misses events rather than blocking the
orchestrator. When a NATS URL is configured, a NATSForwarder subscribes to the
broker and republishes every event as JSON on catena.events.<type>:

	broker := events.NewBroker()
	broker.Start()
	nc, err := events.ConnectNATS(cfg.NATSURL)
	fwd := events.NewNATSForwarder(broker, nc)
	defer fwd.Stop()

Event types:

	cloud.created       a cloud account was registered
	chain.created       a chain and its controller were provisioned
	chain.deleted       a chain was removed with all of its nodes
	node.created        a worker node joined a chain
	node.deleted        a worker node was removed
	operation.failed    a mutating call failed and was rolled back
	instances.orphaned  cloud instances may have been left behind
*/
package events
