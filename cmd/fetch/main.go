// Package main provides a one-shot metadata fetch tool: derives the
// metadata account address for a mint, fetches the account over RPC,
// decodes it, and prints the result to stdout.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/metaplex"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
)

func main() {
	// Parse flags
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	mintFlag := flag.String("mint", "", "Token mint address (a positional argument works too)")
	raw := flag.Bool("raw", false, "Print the metadata address and base64 account data without decoding")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall fetch timeout")

	flag.Parse()

	logger := log.New(os.Stderr, "[fetch] ", log.LstdFlags)

	mint := *mintFlag
	if mint == "" && flag.NArg() > 0 {
		mint = flag.Arg(0)
	}

	// Validate required inputs
	if mint == "" {
		logger.Fatal("--mint (or a positional mint argument) is required")
	}
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		logger.Fatalf("invalid mint address %q: %v", mint, err)
	}

	metaAddr, bump, err := solana.MetadataAddress(mintKey)
	if err != nil {
		logger.Fatalf("derive metadata address: %v", err)
	}

	rpc := solana.NewHTTPClient(*rpcEndpoint)
	info, err := rpc.GetAccountInfo(ctx, metaAddr.String())
	if err != nil {
		logger.Fatalf("fetch account %s: %v", metaAddr.String(), err)
	}
	if info == nil {
		logger.Fatalf("no metadata account for mint %s (derived %s)", mint, metaAddr.String())
	}

	if *raw {
		fmt.Printf("metadata_address: %s\n", metaAddr.String())
		fmt.Printf("bump: %d\n", bump)
		fmt.Printf("slot: %d\n", info.Slot)
		fmt.Printf("owner: %s\n", info.Owner)
		fmt.Printf("data: %s\n", info.Data)
		return
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		logger.Fatalf("decode account data: %v", err)
	}

	meta, err := metaplex.Decode(data)
	if err != nil {
		logger.Fatalf("decode metadata account %s: %v", metaAddr.String(), err)
	}

	output, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		logger.Fatalf("encode output: %v", err)
	}
	fmt.Println(string(output))
}
