package wallet

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const mnemonicWords = 25

// DeriveAccount turns a locally held secret into an account.
// The secret is either a 25-word mnemonic or a 0x-prefixed 32-byte ed25519 seed.
func DeriveAccount(secret string) (core.WalletAccount, error) {
	sk, err := privateKey(strings.TrimSpace(secret))
	if err != nil {
		return core.WalletAccount{}, err
	}

	account, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return core.WalletAccount{}, fmt.Errorf("failed to derive account: %w", core.ErrInvalidSecret)
	}

	address := account.Address.String()
	if err := core.ValidateAddress(address); err != nil {
		return core.WalletAccount{}, err
	}

	return core.WalletAccount{
		Address:   address,
		PublicKey: []byte(account.PublicKey),
	}, nil
}

func privateKey(secret string) (ed25519.PrivateKey, error) {
	if strings.HasPrefix(secret, "0x") {
		seed, err := hexutil.Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("failed to decode seed: %w", core.ErrInvalidSecret)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("seed must be %d bytes: %w", ed25519.SeedSize, core.ErrInvalidSecret)
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}

	if len(strings.Fields(secret)) != mnemonicWords {
		return nil, fmt.Errorf("mnemonic must have %d words: %w", mnemonicWords, core.ErrInvalidSecret)
	}
	sk, err := mnemonic.ToPrivateKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mnemonic: %w", core.ErrInvalidSecret)
	}
	return sk, nil
}

// GenerateAccount creates a fresh account and returns it with its mnemonic
func GenerateAccount() (core.WalletAccount, string, error) {
	account := crypto.GenerateAccount()

	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	if err != nil {
		return core.WalletAccount{}, "", fmt.Errorf("failed to encode mnemonic: %w", err)
	}

	return core.WalletAccount{
		Address:   account.Address.String(),
		PublicKey: []byte(account.PublicKey),
	}, phrase, nil
}
