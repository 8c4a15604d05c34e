package agentRepo

import (
	"context"
	"fmt"
	"time"

	"tourly/config"
	"tourly/database"
	"tourly/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AgentDirectory supplies per-agent working-hour configuration. Agent
// existence validation happens upstream; unknown agents fall back to the
// configured default workday.
type AgentDirectory interface {
	WorkingHours(ctx context.Context, agentID string) (models.WorkingHours, error)
}

// MongoAgentDirectory reads agent profiles from the directory collection.
type MongoAgentDirectory struct {
	coll     *mongo.Collection
	fallback models.WorkingHours
}

// NewMongoAgentDirectory constructs a directory backed by the "agents"
// collection, with the given default workday for agents without a profile.
func NewMongoAgentDirectory(fallback models.WorkingHours) AgentDirectory {
	db := database.MongoClient.Database(config.AppConfig.DatabaseName)
	return &MongoAgentDirectory{
		coll:     db.Collection("agents"),
		fallback: fallback,
	}
}

func (d *MongoAgentDirectory) WorkingHours(ctx context.Context, agentID string) (models.WorkingHours, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var profile models.AgentProfile
	err := d.coll.FindOne(ctx, bson.M{"id": agentID}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return d.fallback, nil
	}
	if err != nil {
		return models.WorkingHours{}, fmt.Errorf("error fetching agent %s: %w", agentID, err)
	}
	if profile.WorkingHours.EndMinutes <= profile.WorkingHours.StartMinutes {
		return d.fallback, nil
	}
	return profile.WorkingHours, nil
}

// StaticAgentDirectory returns the same workday for every agent. Used in
// tests and deployments without a directory collection.
type StaticAgentDirectory struct {
	Hours models.WorkingHours
}

func (d *StaticAgentDirectory) WorkingHours(ctx context.Context, agentID string) (models.WorkingHours, error) {
	return d.Hours, nil
}
