package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "empty ok", output: "", wantErr: false},
		{name: "table ok", output: "table", wantErr: false},
		{name: "json ok", output: "json", wantErr: false},
		{name: "yaml rejected", output: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutputFormat(tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPrintTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"id", "name"}, [][]string{{"1", "alpha"}, {"22", "b"}})

	assert.Equal(t, "ID  NAME\n1   alpha\n22  b\n", buf.String())
}

func TestPrintDetail_SortedAndRendered(t *testing.T) {
	var buf bytes.Buffer
	PrintDetail(&buf, map[string]interface{}{
		"status": nil,
		"items":  []interface{}{"a", "b"},
		"name":   "local",
	})

	out := buf.String()
	assert.Equal(t, "items:   [\"a\",\"b\"]\nname:    local\nstatus:  NULL\n", out)
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "NULL"},
		{[]byte("raw"), "raw"},
		{"text", "text"},
		{int64(42), "42"},
		{3.5, "3.5"},
		{true, "true"},
		{ts, "2024-03-01T12:00:00Z"},
		{map[string]interface{}{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}
