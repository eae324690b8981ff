package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jwebster45206/journey-engine/pkg/apperror"
	"github.com/jwebster45206/journey-engine/pkg/journey"
	"github.com/redis/go-redis/v9"
)

// createUserScript claims a player number and registers the user in one step.
// Returns -1 if the user exists, 0 if the number is taken, 1 on success.
var createUserScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[2]) == 1 then
		return -1
	end
	if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
		return 0
	end
	redis.call("HSET", KEYS[2], "player_number", ARGV[2], "device_id", ARGV[3], "created_date", ARGV[4], "max_turns_ever", "0")
	return 1
`)

// bumpMaxTurnsScript raises max_turns_ever only if the new value is greater.
// Returns the stored value afterwards, or -1 if the user is unknown.
var bumpMaxTurnsScript = redis.NewScript(`
	local current = redis.call("HGET", KEYS[1], "max_turns_ever")
	if not current then
		return -1
	end
	local turns = tonumber(ARGV[1])
	if turns > tonumber(current) then
		redis.call("HSET", KEYS[1], "max_turns_ever", ARGV[1])
		return turns
	end
	return tonumber(current)
`)

func (r *RedisStorage) GetUser(ctx context.Context, userID string) (*journey.User, error) {
	fields, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		r.logger.Error("Failed to load user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	u, err := decodeUser(userID, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", userID, err)
	}
	return u, nil
}

func (r *RedisStorage) CreateUser(ctx context.Context, userID, deviceID string) (*journey.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	created := r.now().UTC()

	for attempt := 1; attempt <= r.retries; attempt++ {
		n := r.nextPlayerNumber()
		res, err := createUserScript.Run(ctx, r.client,
			[]string{playerKey(n), userKey(userID)},
			userID, n, deviceID, created.Format(time.RFC3339Nano),
		).Int()
		if err != nil {
			r.logger.Error("Failed to create user", "user_id", userID, "error", err)
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		switch res {
		case 1:
			r.logger.Info("Registered user", "user_id", userID, "player_number", n)
			return &journey.User{
				UserID:       userID,
				PlayerNumber: n,
				DeviceID:     deviceID,
				CreatedDate:  created,
			}, nil
		case -1:
			return nil, apperror.Conflict("user", userID)
		default:
			r.logger.Warn("Player number collision", "player_number", n, "attempt", attempt)
		}
	}

	return nil, apperror.Conflict("player number", fmt.Sprintf("%d attempts exhausted for user %s", r.retries, userID))
}

func (r *RedisStorage) BumpMaxTurns(ctx context.Context, user *journey.User, turns int) error {
	stored, err := bumpMaxTurnsScript.Run(ctx, r.client, []string{userKey(user.UserID)}, turns).Int()
	if err != nil {
		return fmt.Errorf("failed to update max turns: %w", err)
	}
	if stored < 0 {
		return apperror.NotFound("user", user.UserID)
	}
	user.MaxTurnsEver = stored
	return nil
}

func decodeUser(userID string, fields map[string]string) (*journey.User, error) {
	u := &journey.User{UserID: userID, DeviceID: fields["device_id"]}

	var err error
	if u.PlayerNumber, err = strconv.ParseInt(fields["player_number"], 10, 64); err != nil {
		return nil, fmt.Errorf("player_number: %w", err)
	}
	if u.MaxTurnsEver, err = strconv.Atoi(fields["max_turns_ever"]); err != nil {
		return nil, fmt.Errorf("max_turns_ever: %w", err)
	}
	if u.CreatedDate, err = time.Parse(time.RFC3339Nano, fields["created_date"]); err != nil {
		return nil, fmt.Errorf("created_date: %w", err)
	}
	return u, nil
}
