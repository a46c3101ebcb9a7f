package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr string
	}{
		{
			name: "embedded sqlite",
			desc: NewEmbeddedDescriptor("local", "/tmp/t.db", ""),
		},
		{
			name: "embedded duckdb",
			desc: NewEmbeddedDescriptor("lake", "/tmp/t.duckdb", EngineDuckDB),
		},
		{
			name: "client-server defaults to postgres",
			desc: NewServerDescriptor("pg", ServerTarget{Host: "localhost", Port: 5432, Database: "app"}),
		},
		{
			name:    "embedded without path",
			desc:    NewEmbeddedDescriptor("local", "  ", EngineSQLite),
			wantErr: "requires a path",
		},
		{
			name: "embedded carrying server fields",
			desc: Descriptor{
				Kind:     BackendEmbedded,
				Embedded: EmbeddedTarget{Path: "/tmp/t.db", Engine: EngineSQLite},
				Server:   ServerTarget{Host: "db"},
			},
			wantErr: "must not carry server fields",
		},
		{
			name: "server carrying a path",
			desc: Descriptor{
				Kind:     BackendClientServer,
				Embedded: EmbeddedTarget{Path: "/tmp/t.db"},
				Server:   ServerTarget{Host: "db", Engine: EnginePostgres},
			},
			wantErr: "must not carry a path",
		},
		{
			name:    "server without host",
			desc:    NewServerDescriptor("pg", ServerTarget{Port: 5432}),
			wantErr: "requires a host",
		},
		{
			name:    "bad port",
			desc:    NewServerDescriptor("pg", ServerTarget{Host: "db", Port: 70000}),
			wantErr: "invalid port",
		},
		{
			name:    "unsupported embedded engine",
			desc:    NewEmbeddedDescriptor("x", "/tmp/x", EngineMySQL),
			wantErr: "unsupported embedded engine",
		},
		{
			name:    "untagged",
			desc:    Descriptor{Embedded: EmbeddedTarget{Path: "/tmp/t.db"}},
			wantErr: "unknown backend kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDescriptorIsValueCopy(t *testing.T) {
	orig := NewServerDescriptor("pg", ServerTarget{Host: "db", Password: "secret"})
	copied := orig
	orig.Server.Host = "elsewhere"

	assert.Equal(t, "db", copied.Server.Host)
	assert.Equal(t, NoConnectionID, copied.ID)
	assert.False(t, copied.HasIdentity())
	assert.Equal(t, "********", copied.Redacted().Server.Password)
	assert.Equal(t, "secret", copied.Server.Password)
}

func TestParseHistoryStatus(t *testing.T) {
	assert.Equal(t, HistoryStatusTimedOut, ParseHistoryStatus("Timed Out"))
	assert.Equal(t, HistoryStatusCancelled, ParseHistoryStatus("Cancelled"))
	assert.Equal(t, HistoryStatusUnknown, ParseHistoryStatus("whatever"))
	assert.Equal(t, HistoryStatusUnknown, ParseHistoryStatus(""))
}

func TestTaskStateTerminal(t *testing.T) {
	assert.False(t, TaskStateCreated.Terminal())
	assert.False(t, TaskStateConnecting.Terminal())
	assert.False(t, TaskStateExecuting.Terminal())
	assert.True(t, TaskStateSucceeded.Terminal())
	assert.True(t, TaskStateFailed.Terminal())
	assert.True(t, TaskStateCancelled.Terminal())
}

func TestConnectionErrorUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrConnection(cause, "connect to %s", "db:5432")

	assert.Equal(t, "connect to db:5432: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
