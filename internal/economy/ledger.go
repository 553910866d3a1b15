// Package economy charges players for sending into paid channels.
//
// Balances live in a single Redis hash:
//
//	Key:   economy:balances
//	Field: <lower-case player name>
//	Value: balance as a decimal string
package economy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// BalancesKey is the Redis hash holding every balance.
const BalancesKey = "economy:balances"

// Ledger is the economy collaborator consumed by the pipeline.
type Ledger interface {
	// Withdraw removes amount from the player's balance. It reports false,
	// leaving the balance untouched, when the player cannot afford it.
	Withdraw(ctx context.Context, player string, amount float64) (bool, error)
}

// ErrInvalidAmount is returned for negative or non-finite amounts.
var ErrInvalidAmount = errors.New("economy: invalid amount")

var withdrawScript = redis.NewScript(`
local balance = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
local amount = tonumber(ARGV[2])
if balance < amount then
	return 0
end
redis.call("HINCRBYFLOAT", KEYS[1], ARGV[1], "-" .. ARGV[2])
return 1
`)

// RedisLedger keeps balances in Redis and withdraws atomically.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger creates a ledger using the provided Redis client.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func field(player string) string { return strings.ToLower(player) }

func format(amount float64) string { return strconv.FormatFloat(amount, 'f', -1, 64) }

func validAmount(amount float64) bool {
	return amount >= 0 && amount == amount && amount < 1e15
}

func (l *RedisLedger) Withdraw(ctx context.Context, player string, amount float64) (bool, error) {
	if !validAmount(amount) {
		return false, ErrInvalidAmount
	}
	n, err := withdrawScript.Run(ctx, l.client, []string{BalancesKey}, field(player), format(amount)).Int()
	if err != nil {
		return false, fmt.Errorf("economy: withdraw: %w", err)
	}
	return n == 1, nil
}

// Deposit adds amount to the player's balance.
func (l *RedisLedger) Deposit(ctx context.Context, player string, amount float64) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if err := l.client.HIncrByFloat(ctx, BalancesKey, field(player), amount).Err(); err != nil {
		return fmt.Errorf("economy: deposit: %w", err)
	}
	return nil
}

// Balance returns the current balance, zero for unknown players.
func (l *RedisLedger) Balance(ctx context.Context, player string) (float64, error) {
	v, err := l.client.HGet(ctx, BalancesKey, field(player)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("economy: balance: %w", err)
	}
	return v, nil
}
