package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", input: "5s", want: 5 * time.Second},
		{name: "compound", input: "1m30s", want: 90 * time.Second},
		{name: "zero", input: "0s", want: 0},
		{name: "millis", input: "250ms", want: 250 * time.Millisecond},
		{name: "negative", input: "-1s", wantErr: true},
		{name: "garbage", input: "five", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestDuration_Marshal(t *testing.T) {
	d := Duration(1500 * time.Millisecond)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(text))

	data, err := json.Marshal(struct {
		Timeout Duration `json:"timeout"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"timeout":"1.5s"}`, string(data))
	assert.Equal(t, "1.5s", d.String())
}

func TestDuration_ErrorNamesInput(t *testing.T) {
	var d Duration
	err := d.UnmarshalText([]byte("five"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"five"`)
}
