package main

import (
	"flag"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

func main() {
	k := flag.String("k", "", "path to the solana-keygen keypair file")
	flag.Parse()

	key, err := solana.PrivateKeyFromSolanaKeygenFile(*k)
	if err != nil {
		panic(err)
	}

	fmt.Println("keypair info (bytes encoded using base58):")
	fmt.Printf("PK: %s\n", key.PublicKey())
	fmt.Printf("SK: %s\n", key)
}
