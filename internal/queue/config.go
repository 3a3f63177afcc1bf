package queue

import (
	"github.com/redis/go-redis/v9"

	"github.com/maxg/didit-sub000/internal/config"
)

// Builds the intake queue selected by `cfg`, nil when intake is disabled
func FromConfig(cfg *config.IntakeConfig, client *redis.Client) (Queuer, error) {
	switch cfg.Backend {
	case config.IntakeRedis:
		return NewRedisQueuer(client, cfg.Key), nil
	case config.IntakeAzure:
		q, err := NewAzureQueuer(cfg.Azure.AccountName, cfg.Azure.AccountKey, cfg.Azure.ServiceURL, cfg.Azure.Queue, cfg.MaxDeliveries)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, nil
	}
}
