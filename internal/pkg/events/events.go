package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	TypeNumberClaimed  = "numberClaimed"
	TypeNumberReleased = "numberReleased"
	TypeNumberSold     = "numberSold"
)

// NumberEvent describes a ticket-number status change on a raffle. Events
// are advisory: the number grid a client renders from them is a hint, the
// store remains the source of truth.
type NumberEvent struct {
	Type     string    `json:"type"`
	RaffleID uint      `json:"raffle_id"`
	Numbers  []int     `json:"numbers"`
	At       time.Time `json:"at"`
}

// Emitter publishes number status changes to whatever transport is wired
// (redis pub/sub in production, a recorder in tests). Emit must never block
// the transaction that produced the change; failures are logged, not
// propagated.
type Emitter interface {
	Emit(event NumberEvent)
}

// RedisEmitter publishes events on a per-raffle pub/sub channel that push
// transports (websocket relay, SSE) can subscribe to.
type RedisEmitter struct {
	client *redis.Client
}

func NewRedisEmitter(client *redis.Client) *RedisEmitter {
	return &RedisEmitter{client: client}
}

func (e *RedisEmitter) Emit(event NumberEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Events] Failed to encode %s event for raffle %d: %v", event.Type, event.RaffleID, err)
		return
	}
	channel := ChannelForRaffle(event.RaffleID)
	if err := e.client.Publish(context.Background(), channel, payload).Err(); err != nil {
		log.Errorf("[Events] Failed to publish %s event to %s: %v", event.Type, channel, err)
	}
}

// ChannelForRaffle returns the pub/sub channel carrying number events for
// one raffle.
func ChannelForRaffle(raffleID uint) string {
	return fmt.Sprintf("raffle:%d:numbers", raffleID)
}

// NopEmitter drops all events. Default when no transport is configured.
type NopEmitter struct{}

func (NopEmitter) Emit(NumberEvent) {}
