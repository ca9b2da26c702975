package bridge

import "github.com/roboricindustries/raycon-micbridge/pkg/schemas/common"

const (
	EventType  = "micbridge.session.v1"
	Exchange   = "micbridge"
	RoutingKey = "micbridge.session.v1"

	// content boundary over the broker (amqphost)
	InboundRoutingKey  = "bridge.inbound.v1"
	OutboundRoutingKey = "bridge.outbound.v1"
	MessageEventType   = "bridge.message.v1"
)

var SessionEventMeta = common.EventMeta{
	EventType:  EventType,
	Exchange:   Exchange,
	RoutingKey: RoutingKey,
}

var OutboundMessageMeta = common.EventMeta{
	EventType:  MessageEventType,
	Exchange:   Exchange,
	RoutingKey: OutboundRoutingKey,
}
