package secrets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDopplerClient_EnvironmentWins(t *testing.T) {
	t.Setenv("SETTLEMENT_TEST_SECRET", "from-env")

	d := NewDopplerClient("settlement", "dev")
	d.lookPath = func(string) (string, error) { return "", errors.New("unexpected lookup") }

	assert.Equal(t, "from-env", d.GetSecretWithFallback("SETTLEMENT_TEST_SECRET", "fallback"))
}

func TestDopplerClient_FallbackWithoutCLI(t *testing.T) {
	d := NewDopplerClient("settlement", "dev")
	d.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	assert.Equal(t, "fallback", d.GetSecretWithFallback("SETTLEMENT_MISSING_SECRET", "fallback"))
}

func TestDopplerClient_ReadsFromCLI(t *testing.T) {
	d := NewDopplerClient("settlement", "prd")
	d.lookPath = func(string) (string, error) { return "/usr/bin/doppler", nil }

	var gotArgs []string
	d.run = func(name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("s3cret\n"), nil
	}

	value, err := d.GetSecret("SETTLEMENT_CLI_SECRET")
	assert.NoError(t, err)
	assert.Equal(t, "s3cret", value)
	assert.Contains(t, gotArgs, "prd")
}

func TestEnvSource(t *testing.T) {
	t.Setenv("SETTLEMENT_ENV_SOURCE", "x")
	assert.Equal(t, "x", EnvSource{}.GetSecretWithFallback("SETTLEMENT_ENV_SOURCE", "y"))
	assert.Equal(t, "y", EnvSource{}.GetSecretWithFallback("SETTLEMENT_ENV_SOURCE_MISSING", "y"))
}
