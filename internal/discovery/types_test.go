package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidSubscriptionID(t *testing.T) {
	assert.True(t, ValidSubscriptionID("0b1f6471-1bf0-4dda-aec3-cb9272f09590"))
	assert.True(t, ValidSubscriptionID("0B1F6471-1BF0-4DDA-AEC3-CB9272F09590"))
	assert.False(t, ValidSubscriptionID("0b1f64711bf04ddaaec3cb9272f09590"))
	assert.False(t, ValidSubscriptionID(" 0b1f6471-1bf0-4dda-aec3-cb9272f09590"))
	assert.False(t, ValidSubscriptionID("{0b1f6471-1bf0-4dda-aec3-cb9272f09590}"))
}

func TestClusteredHost(t *testing.T) {
	tests := []struct {
		name                                  string
		explicit, cluster, database, location string
		want                                  string
	}{
		{"explicit wins", "given.example", "c", "default", "West US", "given.example"},
		{"default database", "", "Orders", "default", "East US 2", "orders.eastus2.redis.azure.net"},
		{"named database", "", "orders", "archive", "westeurope", "orders-archive.westeurope.redis.azure.net"},
		{"tabs and case", "", "c", "", "North\tCentral US", "c.northcentralus.redis.azure.net"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clusteredHost(tt.explicit, tt.cluster, tt.database, tt.location))
		})
	}
}

func TestEffectiveTLSPort(t *testing.T) {
	assert.Equal(t, 6380, Resource{Kind: KindSingleNode, Port: 6379}.EffectiveTLSPort())
	assert.Equal(t, 16380, Resource{Kind: KindSingleNode, Port: 6379, TLSPort: 16380}.EffectiveTLSPort())
	assert.Equal(t, 10000, Resource{Kind: KindClustered}.EffectiveTLSPort())
	assert.Equal(t, 10002, Resource{Kind: KindClustered, Port: 10002, TLSPort: 10002}.EffectiveTLSPort())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "cache", Resource{Kind: KindSingleNode, Name: "cache"}.DisplayName())
	assert.Equal(t, "amr/default", Resource{Kind: KindClustered, Name: "amr/default", ClusterName: "amr", DatabaseName: "default"}.DisplayName())
}

func TestFanOut_BoundsConcurrencyAndIsolatesFailures(t *testing.T) {
	var inFlight, peak atomic.Int32
	units := []int{1, 2, 3, 4, 5, 6, 7, 8}

	results := fanOut(context.Background(), 3, units,
		func(u int) string { return "unit" },
		func(_ context.Context, u int) ([]int, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			if u%4 == 0 {
				return nil, errors.New("boom")
			}
			return []int{u * 10}, nil
		})

	assert.Equal(t, []int{10, 20, 30, 50, 60, 70}, results)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}
