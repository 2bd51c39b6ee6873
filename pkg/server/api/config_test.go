package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 30*time.Second, cfg.HandlerTimeout)
	require.EqualValues(t, 32<<20, cfg.UploadLimit)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		errType error
	}{
		{name: "custom timeout", config: Config{HandlerTimeout: time.Minute, UploadLimit: 1}},
		{name: "zero timeout disables the handler timeout", config: Config{UploadLimit: 1}},
		{name: "negative timeout", config: Config{HandlerTimeout: -time.Second, UploadLimit: 1}, errType: ErrInvalidTimeout},
		{name: "no upload limit", config: Config{HandlerTimeout: time.Second}, errType: ErrInvalidUploadLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errType != nil {
				require.ErrorIs(t, err, tt.errType)
				return
			}
			require.NoError(t, err)
		})
	}
}
