package mdns

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/domain"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "_booksy._tcp", ServiceType)
	assert.Equal(t, "v1", APIVersion)
}

func TestTXTRecords(t *testing.T) {
	records := txtRecords(&domain.Instance{
		ID:        "server-1",
		Name:      "Home Library",
		Version:   "1.2.0",
		RemoteURL: "https://books.example.com",
	})

	var got []string
	for _, r := range records {
		got = append(got, string(r))
	}
	assert.Equal(t, []string{
		"id=server-1",
		"name=Home Library",
		"version=1.2.0",
		"api=v1",
		"remote=https://books.example.com",
	}, got)
}

func TestTXTRecords_Defaults(t *testing.T) {
	records := txtRecords(&domain.Instance{ID: "server-1"})
	require.Len(t, records, 4)
	assert.Equal(t, "version=dev", string(records[2]))
}

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "Home Library", instanceName(&domain.Instance{Name: "Home Library"}))
	assert.Contains(t, instanceName(&domain.Instance{}), "Booksy")
}

func TestServiceStop_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	service := NewService(slog.New(slog.NewTextHandler(&buf, nil)))

	service.Stop()
	service.Stop()
	assert.False(t, service.Running())
	assert.Empty(t, buf.String())
}

func TestServiceStart_InvalidPort(t *testing.T) {
	service := NewService(nil)
	assert.Error(t, service.Start(&domain.Instance{ID: "x"}, 0))
	assert.Error(t, service.Start(&domain.Instance{ID: "x"}, 70000))
}

func TestServiceLifecycle(t *testing.T) {
	var buf bytes.Buffer
	service := NewService(slog.New(slog.NewTextHandler(&buf, nil)))

	err := service.Start(&domain.Instance{ID: "lifecycle-test", Name: "Lifecycle Test"}, 8080)
	if err != nil {
		t.Skipf("avahi not available: %v", err)
	}
	assert.True(t, service.Running())
	assert.Contains(t, buf.String(), "mDNS advertisement started")

	// Restart replaces the advertisement.
	require.NoError(t, service.Start(&domain.Instance{ID: "lifecycle-test", Name: "Lifecycle Test"}, 8081))

	service.Stop()
	assert.False(t, service.Running())
	assert.Contains(t, buf.String(), "mDNS advertisement stopped")
}
