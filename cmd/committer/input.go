package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/starkware-libs/committer/common"
	"github.com/starkware-libs/committer/committer/forest"
)

// The JSON input mirrors the wire-level StateDiff; all field elements are
// 0x-prefixed hex strings.
type stateDiffInput struct {
	ContractUpdates []contractUpdateInput `json:"contract_updates"`
	StorageWrites   []storageWriteInput   `json:"storage_writes"`
	ClassUpdates    []classUpdateInput    `json:"class_updates"`
}

type contractUpdateInput struct {
	Address   string  `json:"address"`
	ClassHash *string `json:"class_hash,omitempty"`
	Nonce     *string `json:"nonce,omitempty"`
}

type storageWriteInput struct {
	Address string `json:"address"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

type classUpdateInput struct {
	ClassHash         string `json:"class_hash"`
	CompiledClassHash string `json:"compiled_class_hash"`
}

func readStateDiff(path string) (forest.StateDiff, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return forest.StateDiff{}, err
	}
	input := stateDiffInput{}
	if err := json.Unmarshal(data, &input); err != nil {
		return forest.StateDiff{}, fmt.Errorf("invalid state diff input: %w", err)
	}

	res := forest.StateDiff{}
	for _, update := range input.ContractUpdates {
		address, err := parseFelt(update.Address)
		if err != nil {
			return forest.StateDiff{}, err
		}
		entry := forest.ContractUpdate{Address: address}
		if update.ClassHash != nil {
			classHash, err := parseFelt(*update.ClassHash)
			if err != nil {
				return forest.StateDiff{}, err
			}
			entry.ClassHash = &classHash
		}
		if update.Nonce != nil {
			nonce, err := parseFelt(*update.Nonce)
			if err != nil {
				return forest.StateDiff{}, err
			}
			entry.Nonce = &nonce
		}
		res.ContractUpdates = append(res.ContractUpdates, entry)
	}
	for _, write := range input.StorageWrites {
		address, err := parseFelt(write.Address)
		if err != nil {
			return forest.StateDiff{}, err
		}
		key, err := parseFelt(write.Key)
		if err != nil {
			return forest.StateDiff{}, err
		}
		value, err := parseFelt(write.Value)
		if err != nil {
			return forest.StateDiff{}, err
		}
		res.StorageWrites = append(res.StorageWrites, forest.StorageWrite{Address: address, Key: key, Value: value})
	}
	for _, update := range input.ClassUpdates {
		classHash, err := parseFelt(update.ClassHash)
		if err != nil {
			return forest.StateDiff{}, err
		}
		compiled, err := parseFelt(update.CompiledClassHash)
		if err != nil {
			return forest.StateDiff{}, err
		}
		res.ClassUpdates = append(res.ClassUpdates, forest.ClassUpdate{ClassHash: classHash, CompiledClassHash: compiled})
	}
	return res, nil
}

func parseFelt(value string) (common.Felt, error) {
	parsed, err := hexutil.DecodeBig(value)
	if err != nil {
		return common.Felt{}, fmt.Errorf("invalid field element %q: %w", value, err)
	}
	return common.NewFeltFromBigInt(parsed), nil
}
