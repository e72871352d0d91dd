package wallet

import (
	"testing"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key (first hardhat account)
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestFromHex(t *testing.T) {
	w, err := FromHex(devKey)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", w.Address())

	_, err = FromHex("not-hex")
	assert.Error(t, err)
}

func TestSignal(t *testing.T) {
	w, err := FromHex(devKey)
	require.NoError(t, err)

	assert.Equal(t, core.WalletSignal{}, w.Signal())
	assert.Equal(t, core.WalletSignal{Connected: true, Address: w.Address()}, w.Connect())
	assert.Equal(t, core.WalletSignal{}, w.Disconnect())
}

func TestSignMessage(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	_, err = w.SignMessage(testContext(t), "hello")
	assert.ErrorIs(t, err, core.ErrNotConnected)

	w.Connect()
	sig, err := w.SignMessage(testContext(t), "hello")
	require.NoError(t, err)
	assert.Len(t, sig, 2+65*2)
	assert.Contains(t, []string{"1b", "1c"}, sig[len(sig)-2:])
}
