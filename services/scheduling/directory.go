package scheduling

import (
	"context"
	"encoding/json"
	"time"

	agentRepo "tourly/database/repository/agent"
	"tourly/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const agentHoursCachePrefix = "agent_hours:"

// CachedAgentDirectory memoizes working-hours lookups in Redis. Directory
// reads sit on the hot availability path; profiles change rarely.
type CachedAgentDirectory struct {
	Next   agentRepo.AgentDirectory
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func (d *CachedAgentDirectory) WorkingHours(ctx context.Context, agentID string) (models.WorkingHours, error) {
	key := agentHoursCachePrefix + agentID

	if raw, err := d.Client.Get(ctx, key).Result(); err == nil {
		var hours models.WorkingHours
		if json.Unmarshal([]byte(raw), &hours) == nil {
			return hours, nil
		}
	}

	hours, err := d.Next.WorkingHours(ctx, agentID)
	if err != nil {
		return models.WorkingHours{}, err
	}

	if data, err := json.Marshal(hours); err == nil {
		if err := d.Client.Set(ctx, key, data, d.TTL).Err(); err != nil && d.Logger != nil {
			d.Logger.Warn("failed to cache agent hours", zap.String("agentID", agentID), zap.Error(err))
		}
	}
	return hours, nil
}
