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

// saveProgressScript updates progress fields of an active record without
// touching active. Returns -1 if the record is missing, 0 if it is inactive.
var saveProgressScript = redis.NewScript(`
	local active = redis.call("HGET", KEYS[1], "active")
	if not active then
		return -1
	end
	if active ~= "1" then
		return 0
	end
	redis.call("HSET", KEYS[1], "question_number", ARGV[1], "money_level", ARGV[2], "energy_level", ARGV[3], "turns_completed", ARGV[4])
	return 1
`)

// deactivateScript flips active from 1 to 0. Returns 0 when it was not 1.
var deactivateScript = redis.NewScript(`
	if redis.call("HGET", KEYS[1], "active") == "1" then
		redis.call("HSET", KEYS[1], "active", "0")
		return 1
	end
	return 0
`)

func (r *RedisStorage) FindActiveJourney(ctx context.Context, playerNumber int64) (*journey.Journey, error) {
	cityIDs, err := r.client.SMembers(ctx, journeyIndexKey(playerNumber)).Result()
	if err != nil {
		r.logger.Error("Failed to list journeys", "player_number", playerNumber, "error", err)
		return nil, fmt.Errorf("failed to list journeys: %w", err)
	}
	if len(cityIDs) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, 0, len(cityIDs))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range cityIDs {
			cityID, err := strconv.Atoi(id)
			if err != nil {
				return fmt.Errorf("bad city id %q in journey index: %w", id, err)
			}
			cmds = append(cmds, pipe.HGetAll(ctx, journeyKey(playerNumber, cityID)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load journeys: %w", err)
	}

	var active []*journey.Journey
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 || fields["active"] != "1" {
			continue
		}
		j, err := decodeJourney(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to decode journey: %w", err)
		}
		active = append(active, j)
	}

	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return active[0], nil
	default:
		r.logger.Error("Multiple active journeys", "player_number", playerNumber, "count", len(active))
		return nil, apperror.Consistency("player %d has %d active journeys", playerNumber, len(active))
	}
}

func (r *RedisStorage) StartJourney(ctx context.Context, playerNumber int64, cityID int) (*journey.Journey, error) {
	j := journey.New(playerNumber, cityID, r.now().UTC())
	if err := r.putJourney(ctx, j); err != nil {
		r.logger.Error("Failed to start journey", "player_number", playerNumber, "city_id", cityID, "error", err)
		return nil, fmt.Errorf("failed to start journey: %w", err)
	}
	return &j, nil
}

func (r *RedisStorage) SaveProgress(ctx context.Context, j *journey.Journey) error {
	if j == nil {
		return fmt.Errorf("journey cannot be nil")
	}
	ok, err := saveProgressScript.Run(ctx, r.client,
		[]string{journeyKey(j.PlayerNumber, j.CityID)},
		j.QuestionNumber, j.MoneyLevel, j.EnergyLevel, j.TurnsCompleted,
	).Int()
	if err != nil {
		r.logger.Error("Failed to save progress", "journey", j.Key(), "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	switch ok {
	case -1:
		return apperror.NotFound("journey", j.Key())
	case 0:
		return apperror.StaleState("journey", j.Key())
	}
	return nil
}

func (r *RedisStorage) Deactivate(ctx context.Context, j *journey.Journey) error {
	if j == nil {
		return fmt.Errorf("journey cannot be nil")
	}
	ok, err := deactivateScript.Run(ctx, r.client, []string{journeyKey(j.PlayerNumber, j.CityID)}).Int()
	if err != nil {
		r.logger.Error("Failed to deactivate journey", "journey", j.Key(), "error", err)
		return fmt.Errorf("failed to deactivate journey: %w", err)
	}
	if ok == 0 {
		return apperror.StaleState("journey", j.Key())
	}
	j.Active = false
	return nil
}

// putJourney writes the whole record and indexes it under the player.
func (r *RedisStorage) putJourney(ctx context.Context, j journey.Journey) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, journeyKey(j.PlayerNumber, j.CityID), encodeJourney(j))
		pipe.SAdd(ctx, journeyIndexKey(j.PlayerNumber), j.CityID)
		return nil
	})
	return err
}

// loadJourney reads one record regardless of its active flag.
func (r *RedisStorage) loadJourney(ctx context.Context, playerNumber int64, cityID int) (*journey.Journey, error) {
	fields, err := r.client.HGetAll(ctx, journeyKey(playerNumber, cityID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeJourney(fields)
}

func encodeJourney(j journey.Journey) map[string]any {
	active := "0"
	if j.Active {
		active = "1"
	}
	return map[string]any{
		"player_number":   j.PlayerNumber,
		"city_id":         j.CityID,
		"question_number": j.QuestionNumber,
		"money_level":     j.MoneyLevel,
		"energy_level":    j.EnergyLevel,
		"turns_completed": j.TurnsCompleted,
		"active":          active,
		"started_date":    j.StartedDate.UTC().Format(time.RFC3339Nano),
	}
}

func decodeJourney(fields map[string]string) (*journey.Journey, error) {
	j := &journey.Journey{Active: fields["active"] == "1"}

	var err error
	if j.PlayerNumber, err = strconv.ParseInt(fields["player_number"], 10, 64); err != nil {
		return nil, fmt.Errorf("player_number: %w", err)
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"city_id", &j.CityID},
		{"question_number", &j.QuestionNumber},
		{"money_level", &j.MoneyLevel},
		{"energy_level", &j.EnergyLevel},
		{"turns_completed", &j.TurnsCompleted},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(fields[f.name]); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if j.StartedDate, err = time.Parse(time.RFC3339Nano, fields["started_date"]); err != nil {
		return nil, fmt.Errorf("started_date: %w", err)
	}
	return j, nil
}
