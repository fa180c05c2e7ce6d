package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/agency-crm/internal/config"
)

func TestNewUniversalRedisClient_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RedisConfig
		want string
	}{
		{"no address", config.RedisConfig{Mode: "single"}, "Addrs or Addr must be provided"},
		{"sentinel without master", config.RedisConfig{Mode: "sentinel", Addrs: []string{"s1:26379"}}, "requires MasterName"},
		{"unknown mode", config.RedisConfig{Mode: "ring", Addr: "r:6379"}, "unsupported redis mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewUniversalRedisClient(context.Background(), tt.cfg)
			assert.Nil(t, client)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
