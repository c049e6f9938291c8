package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"reserveScope/internal/model"
)

// Client wraps go-ethereum RPC and implements Provider.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	retry     RetryConfig
	logger    *zap.Logger
}

var _ Provider = (*Client)(nil)

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, retry RetryConfig, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		retry:     retry,
		logger:    logger,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// CurrentBlockHeight returns the latest block number.
func (c *Client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.do(ctx, "block_number", func(ctx context.Context) error {
		var err error
		height, err = c.ethClient.BlockNumber(ctx)
		return err
	})
	return height, err
}

// GetLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) GetLogs(ctx context.Context, query LogQuery) ([]model.EventLog, error) {
	filter := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(query.FromBlock),
		ToBlock:   new(big.Int).SetUint64(query.ToBlock),
		Addresses: query.Addresses,
	}
	if len(query.Topics) > 0 {
		filter.Topics = [][]common.Hash{query.Topics}
	}

	var out []model.EventLog
	err := c.do(ctx, "get_logs", func(ctx context.Context) error {
		logs, err := c.ethClient.FilterLogs(ctx, filter)
		if err != nil {
			c.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", query.FromBlock), zap.Uint64("to", query.ToBlock))
			return err
		}
		out = make([]model.EventLog, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				continue
			}
			out = append(out, model.FromTypesLog(log))
		}
		return nil
	})
	return out, err
}

// BatchedRead sends all calls as one JSON-RPC batch of eth_call.
func (c *Client) BatchedRead(ctx context.Context, block *big.Int, calls []Call) ([]CallResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	blockArg := "latest"
	if block != nil {
		blockArg = hexutil.EncodeBig(block)
	}

	var results []CallResult
	err := c.do(ctx, "batched_read", func(ctx context.Context) error {
		outputs := make([]hexutil.Bytes, len(calls))
		elems := make([]rpc.BatchElem, len(calls))
		for i, call := range calls {
			elems[i] = rpc.BatchElem{
				Method: "eth_call",
				Args: []interface{}{
					map[string]interface{}{
						"to":   call.To,
						"data": hexutil.Bytes(call.Data),
					},
					blockArg,
				},
				Result: &outputs[i],
			}
		}
		if err := c.rpcClient.BatchCallContext(ctx, elems); err != nil {
			c.logger.Warn("batch call failed", zap.Error(err), zap.Int("calls", len(calls)))
			return err
		}

		results = make([]CallResult, len(calls))
		for i, elem := range elems {
			if elem.Error != nil {
				results[i] = CallResult{Err: elem.Error}
				continue
			}
			results[i] = CallResult{Data: outputs[i]}
		}
		return nil
	})
	return results, err
}

func (c *Client) do(ctx context.Context, op string, fn func(context.Context) error) error {
	return c.retry.run(ctx, c.logger, op, fn)
}
