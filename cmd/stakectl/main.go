// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// stakectl is the operator tool for the staking and rewarding protocols: it
// generates signer keys and produces the typed-data digests and signatures
// that authorize protocol actions.
package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Sapien-io/sapien-contracts-sub001/authorization"
	"github.com/Sapien-io/sapien-contracts-sub001/config"
	"github.com/Sapien-io/sapien-contracts-sub001/pkg/util/bounds"
)

var (
	_configPath string
	_contract   string
	_account    string
	_amount     string
	_orderID    uint64
	_action     string
	_keyHex     string
	_sigHex     string
)

var rootCmd = &cobra.Command{
	Use:   "stakectl",
	Short: "operator tool for the Sapien staking and rewarding protocols",
	Long: `stakectl generates signer keys and produces the typed-data digests and
signatures that authorize staking and reward claim actions.`,
	SilenceUsage: true,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "generate a secp256k1 signer key",
	RunE: func(cmd *cobra.Command, args []string) error {
		sk, err := crypto.GenerateKey()
		if err != nil {
			return errors.Wrap(err, "failed to generate key")
		}
		cmd.Printf("private key: %x\n", crypto.FromECDSA(sk))
		cmd.Printf("address:     %s\n", crypto.PubkeyToAddress(sk.PublicKey))
		return nil
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "compute the typed-data digest of an action",
	RunE: func(cmd *cobra.Command, args []string) error {
		digest, err := actionDigest()
		if err != nil {
			return err
		}
		cmd.Printf("digest: %s\n", digest)
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "sign an action with the given private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		sk, err := crypto.HexToECDSA(strings.TrimPrefix(_keyHex, "0x"))
		if err != nil {
			return errors.Wrap(err, "failed to parse private key")
		}
		digest, err := actionDigest()
		if err != nil {
			return err
		}
		sig, err := authorization.Sign(digest, sk)
		if err != nil {
			return err
		}
		cmd.Printf("signer:    %s\n", crypto.PubkeyToAddress(sk.PublicKey))
		cmd.Printf("signature: %x\n", sig)
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "recover the signer of an action signature",
	RunE: func(cmd *cobra.Command, args []string) error {
		sig, err := hex.DecodeString(strings.TrimPrefix(_sigHex, "0x"))
		if err != nil {
			return errors.Wrap(err, "failed to decode signature")
		}
		digest, err := actionDigest()
		if err != nil {
			return err
		}
		signer, err := authorization.Recover(digest, sig)
		if err != nil {
			return err
		}
		cmd.Printf("signer: %s\n", signer)
		return nil
	},
}

func actionDigest() (common.Hash, error) {
	cfg := config.Default
	if _configPath != "" {
		var err error
		if cfg, err = config.New(_configPath); err != nil {
			return common.Hash{}, err
		}
	}
	if !common.IsHexAddress(_contract) || !common.IsHexAddress(_account) {
		return common.Hash{}, errors.New("contract and account must be hex addresses")
	}
	amount, ok := new(big.Int).SetString(_amount, 10)
	if !ok {
		return common.Hash{}, errors.Errorf("failed to parse amount %s", _amount)
	}
	action, err := parseAction(_action)
	if err != nil {
		return common.Hash{}, err
	}
	domain := authorization.NewDomain(
		cfg.Signing.Name, cfg.Signing.Version, cfg.Signing.ChainID,
		common.HexToAddress(_contract),
	)
	return domain.Hash(common.HexToAddress(_account), amount, _orderID, action), nil
}

func parseAction(raw string) (authorization.ActionType, error) {
	for _, action := range []authorization.ActionType{
		authorization.ActionStake,
		authorization.ActionInitiateUnstake,
		authorization.ActionUnstake,
		authorization.ActionInstantUnstake,
		authorization.ActionClaim,
	} {
		if strings.EqualFold(raw, action.String()) {
			return action, nil
		}
	}
	// numeric action types pass through as-is
	if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
		narrowed, err := bounds.ToUint8(v)
		if err != nil {
			return 0, errors.Wrapf(err, "action type %s", raw)
		}
		if action := authorization.ActionType(narrowed); action <= authorization.ActionClaim {
			return action, nil
		}
	}
	return 0, errors.Errorf("unknown action type %s", raw)
}

func init() {
	for _, cmd := range []*cobra.Command{hashCmd, signCmd, recoverCmd} {
		cmd.Flags().StringVar(&_configPath, "config", "", "path to the yaml config, defaults apply when empty")
		cmd.Flags().StringVar(&_contract, "contract", "", "verifying contract address of the signing domain")
		cmd.Flags().StringVar(&_account, "account", "", "account the action applies to")
		cmd.Flags().StringVar(&_amount, "amount", "0", "amount in base token units")
		cmd.Flags().Uint64Var(&_orderID, "order-id", 0, "single-use order ID")
		cmd.Flags().StringVar(&_action, "action", "", "action type: stake, initiateUnstake, unstake, instantUnstake or claim")
	}
	signCmd.Flags().StringVar(&_keyHex, "key", "", "hex-encoded secp256k1 private key")
	recoverCmd.Flags().StringVar(&_sigHex, "sig", "", "hex-encoded 65-byte signature")
	rootCmd.AddCommand(keygenCmd, hashCmd, signCmd, recoverCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
