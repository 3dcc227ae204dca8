package deployer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	rpcAttempts     = 120
	rpcPollInterval = time.Second
)

// Dial waits for url to answer and returns a connected client.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url is empty")
	}

	if err := WaitForRPC(ctx, url, rpcAttempts); err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	return client, nil
}

// WaitForRPC polls url until it reports a block number, at most attempts times.
func WaitForRPC(ctx context.Context, url string, attempts int) error {
	ticker := time.NewTicker(rpcPollInterval)
	defer ticker.Stop()

	for range attempts {
		if rpcReady(ctx, url) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped waiting for RPC at %s: %w", url, ctx.Err())
		case <-ticker.C:
		}
	}

	return fmt.Errorf("timed out waiting for RPC at %s", url)
}

func rpcReady(ctx context.Context, url string) bool {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.BlockNumber(ctx)

	return err == nil
}
