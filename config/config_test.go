package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "defaults",
			env:  nil,
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, "http://localhost:5000", cfg.RegistryURL)
				assert.Equal(t, "registry", cfg.Container)
				assert.Equal(t, 4, cfg.Workers)
				assert.False(t, cfg.ForceAPI)
				assert.Empty(t, cfg.StorageRoot)
			},
		},
		{
			name: "port override",
			env:  map[string]string{EnvPort: "5010"},
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, "http://localhost:5010", cfg.RegistryURL)
			},
		},
		{
			name: "url wins over port",
			env: map[string]string{
				EnvPort: "5010",
				EnvURL:  "http://registry.lan:80",
			},
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, "http://registry.lan:80", cfg.RegistryURL)
			},
		},
		{
			name: "full override",
			env: map[string]string{
				EnvContainer:   "staging-registry",
				EnvStorageRoot: "/var/lib/registry",
				EnvForceAPI:    "true",
				EnvCopyTool:    "skopeo",
				EnvWorkers:     "8",
			},
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, "staging-registry", cfg.Container)
				assert.Equal(t, "/var/lib/registry", cfg.StorageRoot)
				assert.True(t, cfg.ForceAPI)
				assert.Equal(t, "skopeo", cfg.CopyTool)
				assert.Equal(t, 8, cfg.Workers)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{EnvPort: "not-a-port"},
			wantErr: true,
		},
		{
			name:    "port out of range",
			env:     map[string]string{EnvPort: "70000"},
			wantErr: true,
		},
		{
			name:    "invalid force flag",
			env:     map[string]string{EnvForceAPI: "maybe"},
			wantErr: true,
		},
		{
			name:    "zero workers",
			env:     map[string]string{EnvWorkers: "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := FromEnv()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want(t, cfg)
		})
	}
}
