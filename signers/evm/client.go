package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/tyler-smith/go-bip39"

	relayevm "github.com/metaswap/relay/go/mechanisms/evm"
)

// DefaultDerivationPath is the BIP44 path of the first Ethereum account
const DefaultDerivationPath = "m/44'/60'/0'/0/%d"

// ClientSigner implements relayevm.ClientEvmSigner using an ECDSA private key.
// It signs Forwarder and Permit typed data for the relay client.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClientSignerFromPrivateKey creates a client signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Example:
//
//	signer, err := evm.NewClientSignerFromPrivateKey(os.Getenv("RELAY_PRIVATE_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := relay.NewClient(session, signer)
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return newClientSigner(privateKey), nil
}

// NewClientSignerFromMnemonic derives the signer at BIP44 account index from a seed phrase
func NewClientSignerFromMnemonic(mnemonic string, index uint32) (*ClientSigner, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid seed phrase")
	}

	seed := bip39.NewSeed(mnemonic, "")
	wallet, err := hdwallet.NewFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet: %w", err)
	}

	path, err := hdwallet.ParseDerivationPath(fmt.Sprintf(DefaultDerivationPath, index))
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}
	account, err := wallet.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account %d: %w", index, err)
	}

	privateKey, err := wallet.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("failed to export private key: %w", err)
	}
	return newClientSigner(privateKey), nil
}

func newClientSigner(privateKey *ecdsa.PrivateKey) *ClientSigner {
	return &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the Ethereum address of the signer.
func (s *ClientSigner) Address() string {
	return s.address.Hex()
}

// SignTypedData signs EIP-712 typed data and returns r ‖ s ‖ v with v in {27, 28}.
func (s *ClientSigner) SignTypedData(
	ctx context.Context,
	domain relayevm.TypedDataDomain,
	types map[string][]relayevm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := relayevm.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 → 27/28)
	signature[64] += 27

	return signature, nil
}
