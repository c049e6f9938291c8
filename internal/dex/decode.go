package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"reserveScope/internal/model"
)

// PairCreated is a decoded pool-creation log.
type PairCreated struct {
	Token0 common.Address
	Token1 common.Address
	Pair   common.Address
}

// DecodePairCreated decodes a PairCreated log.
func DecodePairCreated(log model.EventLog) (PairCreated, error) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return PairCreated{}, fmt.Errorf("parse factory abi: %w", err)
	}
	event := factoryABI.Events["PairCreated"]
	if log.Signature() != event.ID {
		return PairCreated{}, fmt.Errorf("%w: %s", model.ErrInvalidEventSignature, log.Signature().Hex())
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return PairCreated{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return PairCreated{}, err
	}
	pair, err := AsAddress(values[0])
	if err != nil {
		return PairCreated{}, fmt.Errorf("%w: pair: %v", model.ErrMalformedPayload, err)
	}

	return PairCreated{Token0: indexed.Token0, Token1: indexed.Token1, Pair: pair}, nil
}

func decodeSync(log model.EventLog) (*uint256.Int, *uint256.Int, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := unpackNonIndexed(pairABI.Events["Sync"], log.Data)
	if err != nil {
		return nil, nil, err
	}
	return asUint256Pair(values)
}

// decodeVaultFlow returns (assets, shares) of a Deposit or Withdraw log.
func decodeVaultFlow(name string, log model.EventLog) (*uint256.Int, *uint256.Int, error) {
	vaultABI, err := ERC4626ABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse vault abi: %w", err)
	}
	event := vaultABI.Events[name]
	if want := len(indexedArguments(event.Inputs)) + 1; len(log.Topics) != want {
		return nil, nil, fmt.Errorf("%w: expected %d topics, got %d", model.ErrMalformedPayload, want, len(log.Topics))
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, nil, err
	}
	return asUint256Pair(values)
}

func parseIndexed(event abi.Event, topics []common.Hash, out interface{}) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("%w: expected %d topics, got %d", model.ErrMalformedPayload, len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("%w: parse topics: %v", model.ErrMalformedPayload, err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	args := event.Inputs.NonIndexed()
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", model.ErrMalformedPayload, event.Name, err)
	}
	if len(values) != len(args) {
		return nil, fmt.Errorf("%w: unexpected %s values: %d", model.ErrMalformedPayload, event.Name, len(values))
	}
	return values, nil
}

func asUint256Pair(values []interface{}) (*uint256.Int, *uint256.Int, error) {
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("%w: expected 2 values, got %d", model.ErrMalformedPayload, len(values))
	}
	a, err := AsUint256(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)
	}
	b, err := AsUint256(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrMalformedPayload, err)
	}
	return a, b, nil
}

// AsUint256 converts an unpacked ABI integer.
func AsUint256(value interface{}) (*uint256.Int, error) {
	b, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	if b.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", b)
	}
	out, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s overflows 256 bits", b)
	}
	return out, nil
}

// AsAddress converts an unpacked ABI address.
func AsAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
