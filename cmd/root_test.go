package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/profile-fusion/internal/sources"
)

func TestDecodeConfigDefaults(t *testing.T) {
	v := viper.New()
	configure(v)

	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "local", cfg.Lock.Driver)
	assert.Equal(t, 10*time.Second, cfg.Lock.Wait)
	assert.Equal(t, 2*time.Minute, cfg.AI.Timeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Gemini.Model)
	assert.Equal(t, int64(10<<20), cfg.CV.MaxBytes)
	assert.Equal(t, 60, cfg.Skills.MaxLength)
	assert.True(t, cfg.GitHub.ParseReadme)
	assert.False(t, cfg.AI.Enabled)
}

func TestDecodeConfigEnvOverrides(t *testing.T) {
	t.Setenv("PROFILE_FUSION_STORAGE_DRIVER", "memory")
	t.Setenv("PROFILE_FUSION_LOCK_WAIT", "3s")
	t.Setenv("PROFILE_FUSION_SKILLS_EXCLUDE_FILE", "/etc/skills.exclude")

	v := viper.New()
	configure(v)

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.Lock.Wait)
	assert.Equal(t, "/etc/skills.exclude", cfg.Skills.ExcludeFile)
}

func TestDecodeConfigValidation(t *testing.T) {
	tests := map[string]map[string]any{
		"unknown storage":   {"storage.driver": "postgres"},
		"unknown lock":      {"lock.driver": "etcd"},
		"redis without url": {"lock.driver": "redis"},
		"unknown provider":  {"ai.enabled": true, "ai.provider": "openai"},
		"unknown filter":    {"skills.disable": []string{"junk", "spellcheck"}},
	}

	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			configure(v)
			for key, value := range overrides {
				v.Set(key, value)
			}

			_, err := decodeConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestDecodeConfigDisabledFilters(t *testing.T) {
	v := viper.New()
	configure(v)
	v.Set("skills.disable", []string{"junk", "sort"})

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"junk", "sort"}, cfg.Skills.Disable)
}

func TestSourceRequestFromFlags(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("cv", "", "")
		cmd.Flags().String("linkedin", "", "")
		cmd.Flags().String("github", "", "")
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}

	req, err := sourceRequestFromFlags(newCmd("--cv", " cv.pdf "))
	require.NoError(t, err)
	assert.Equal(t, sources.CVRequest{Path: "cv.pdf"}, req)

	req, err = sourceRequestFromFlags(newCmd("--github", "https://github.com/jane"))
	require.NoError(t, err)
	assert.Equal(t, sources.GitHubRequest{URL: "https://github.com/jane"}, req)

	req, err = sourceRequestFromFlags(newCmd("--linkedin", "https://www.linkedin.com/in/jane"))
	require.NoError(t, err)
	assert.Equal(t, sources.LinkedInRequest{URL: "https://www.linkedin.com/in/jane"}, req)

	_, err = sourceRequestFromFlags(newCmd())
	assert.Error(t, err)
}
