package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ArtCertify/ArtCertify-sub001/adapters/wallet"
	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"artcertify"}, args...))
	return out.String(), err
}

func TestDerive(t *testing.T) {
	account, phrase, err := wallet.GenerateAccount()
	require.NoError(t, err)

	out, err := run(t, "derive", "--secret", phrase)
	require.NoError(t, err)
	assert.Equal(t, account.Address+"\n", out)
}

func TestDerive_Generate(t *testing.T) {
	out, err := run(t, "derive", "--generate")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	address := strings.TrimSpace(strings.TrimPrefix(lines[0], "address:"))
	assert.True(t, core.IsValidAddress(address))

	phrase := strings.TrimSpace(strings.TrimPrefix(lines[1], "mnemonic:"))
	derived, err := wallet.DeriveAccount(phrase)
	require.NoError(t, err)
	assert.Equal(t, address, derived.Address)
}

func TestDerive_Errors(t *testing.T) {
	_, err := run(t, "derive")
	assert.Error(t, err)

	_, err = run(t, "derive", "--secret", "not a mnemonic")
	assert.ErrorIs(t, err, core.ErrInvalidSecret)
}

func TestServe_InvalidConfig(t *testing.T) {
	t.Setenv("ARTCERTIFY_STORE__DRIVER", "etcd")
	_, err := run(t, "serve")
	assert.ErrorContains(t, err, "unknown store driver")
}
