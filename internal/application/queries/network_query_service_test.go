package queries

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scent-memory-network/internal/domain/memory"
	"scent-memory-network/internal/domain/network"
	"scent-memory-network/internal/infrastructure/observability"
	"scent-memory-network/internal/memories"
	"scent-memory-network/internal/view"
	appErrors "scent-memory-network/pkg/errors"
)

type sourceFunc func(ctx context.Context, req memories.Request) (*memory.Snapshot, error)

func (f sourceFunc) GetMemories(ctx context.Context, req memories.Request) (*memory.Snapshot, error) {
	return f(ctx, req)
}

func joyfulRecords() []memory.Record {
	return []memory.Record{
		{ID: "a", Title: "Beach", Emotion: "Joyful", Processed: true},
		{ID: "b", Title: "Garden", Emotion: "joyful", Processed: true},
		{ID: "c", Title: "Pending", Processed: false},
	}
}

// poles puts the two nodes of a pair in range of each other.
func poles() *network.Builder {
	return network.NewBuilder(network.BuilderConfig{MaxDistanceFraction: 1}, nil)
}

func TestNetworkQueryService_GetNetwork(t *testing.T) {
	metrics := observability.NewCollector("test")
	var seen memories.Request
	source := sourceFunc(func(_ context.Context, req memories.Request) (*memory.Snapshot, error) {
		seen = req
		return memory.NewSnapshot(joyfulRecords(), time.Now()), nil
	})
	svc := NewNetworkQueryService(source, poles(), nil, metrics, zap.NewNop())

	result, err := svc.GetNetwork(context.Background(), &GetNetworkQuery{UserID: "u1", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, memories.Request{UserID: "u1", Token: "tok"}, seen)

	assert.Equal(t, network.StateReady, result.State)
	assert.Equal(t, memory.Counts{Processed: 2, Pending: 1}, result.Counts)
	require.Len(t, result.Nodes, 2)
	require.Len(t, result.Edges, 1)
	assert.Equal(t, network.ConnectionEmotion, result.Edges[0].Type)
	assert.Equal(t, "Joyful", result.Edges[0].Detail)
	assert.Equal(t, network.ConnectionEmotion.Style().Color, result.Edges[0].Color)
	assert.Equal(t, 1, result.Stats.EdgesByType["emotion"])
	assert.Equal(t, view.StateReady, result.View.State)
	assert.Nil(t, result.View.Legend)
	assert.NotEmpty(t, result.Fingerprint)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GraphBuilds.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GraphEdges.WithLabelValues("emotion")))
}

func TestNetworkQueryService_GetNetworkWithLegend(t *testing.T) {
	svc := NewNetworkQueryService(memories.NewStaticSource(joyfulRecords()), poles(), nil, nil, nil)

	result, err := svc.GetNetwork(context.Background(), &GetNetworkQuery{UserID: "u1", Legend: true})
	require.NoError(t, err)
	require.NotNil(t, result.View.Legend)
	assert.Len(t, result.View.Legend.Connections, 3)
}

func TestNetworkQueryService_PlaceholderStates(t *testing.T) {
	tests := []struct {
		name    string
		records []memory.Record
		state   network.State
	}{
		{name: "empty", records: nil, state: network.StateEmpty},
		{name: "pending only", records: []memory.Record{{ID: "p"}}, state: network.StateEmpty},
		{name: "one processed", records: []memory.Record{{ID: "a", Processed: true}}, state: network.StateNeedMore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewNetworkQueryService(memories.NewStaticSource(tt.records), poles(), nil, nil, nil)
			result, err := svc.GetNetwork(context.Background(), &GetNetworkQuery{UserID: "u1"})
			require.NoError(t, err)
			assert.Equal(t, tt.state, result.State)
			assert.Empty(t, result.Nodes)
			assert.Empty(t, result.Edges)
		})
	}
}

func TestNetworkQueryService_SourceError(t *testing.T) {
	source := sourceFunc(func(context.Context, memories.Request) (*memory.Snapshot, error) {
		return nil, appErrors.NewRateLimitError("slow down")
	})
	svc := NewNetworkQueryService(source, poles(), nil, nil, nil)

	_, err := svc.GetNetwork(context.Background(), &GetNetworkQuery{UserID: "u1"})
	require.Error(t, err)
	assert.True(t, appErrors.IsRateLimit(err))
	assert.False(t, appErrors.ShouldNotify(err))
}

func TestNetworkQueryService_Inspect(t *testing.T) {
	svc := NewNetworkQueryService(memories.NewStaticSource(nil), poles(), nil, nil, nil)

	body := []byte(`[
		{"id":"a","title":"Beach","emotion":"Calm","processed":true},
		{"title":"missing id","processed":true},
		7,
		{"id":"b","title":"Lake","emotion":"calm","processed":true}
	]`)
	result, err := svc.Inspect(context.Background(), &InspectQuery{Body: body})
	require.NoError(t, err)
	assert.Equal(t, network.StateReady, result.State)
	assert.Len(t, result.Nodes, 2)
	assert.Len(t, result.Edges, 1)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, 1, result.Rejected[0].Index)
	assert.Equal(t, 2, result.Rejected[1].Index)

	_, err = svc.Inspect(context.Background(), &InspectQuery{Body: []byte(`{"id":"a"}`)})
	assert.True(t, appErrors.IsValidation(err))
}

func TestNetworkQueryService_Families(t *testing.T) {
	svc := NewNetworkQueryService(memories.NewStaticSource(nil), poles(), nil, nil, nil)
	result := svc.Families()
	require.Len(t, result.Families, 10)
	assert.Equal(t, network.FamilyFloral, result.Families[0].Name)
}

const yamlTable = `families:
  - name: Smoky
    color: "#555555"
    keywords: [smoke, tar]
  - name: floral
    color: "#F4C2C2"
    keywords: [rose]
`

const tomlTable = `[[families]]
name = "leather"
color = "#7A5230"
keywords = ["leather", "suede"]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFamilyTable(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "families.yaml")
	writeFile(t, yamlPath, yamlTable)
	table, err := LoadFamilyTable(yamlPath)
	require.NoError(t, err)
	require.Len(t, table.Families, 2)
	assert.Equal(t, network.Family("smoky"), table.Families[0].Name)
	assert.Equal(t, network.Family("smoky"), table.Classify("", []string{"birch smoke"}))

	tomlPath := filepath.Join(dir, "families.toml")
	writeFile(t, tomlPath, tomlTable)
	table, err = LoadFamilyTable(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "#7A5230", table.Color("leather"))

	jsonPath := filepath.Join(dir, "families.json")
	writeFile(t, jsonPath, `{"families":[]}`)
	_, err = LoadFamilyTable(jsonPath)
	assert.Error(t, err)

	_, err = LoadFamilyTable(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWatchFamilyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "families.yaml")
	writeFile(t, path, yamlTable)

	registry := network.NewFamilyRegistry(nil)
	watcher, err := WatchFamilyTable(path, registry, zap.NewNop())
	require.NoError(t, err)
	defer watcher.Stop()
	assert.Equal(t, network.Family("smoky"), registry.Table().Families[0].Name)

	// A broken table keeps the previous one.
	writeFile(t, path, "families: []\n")
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, network.Family("smoky"), registry.Table().Families[0].Name)

	writeFile(t, path, "families:\n  - name: leather\n    keywords: [leather]\n")
	require.Eventually(t, func() bool {
		return registry.Table().Families[0].Name == "leather"
	}, 3*time.Second, 20*time.Millisecond)
}
