package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/donate"
	"github.com/gagliardetto/solana-go"
)

func main() {
	num := flag.Int("N", 1, "number of keypairs to generate")
	dir := flag.String("dir", "./keypairs", "output directory name")
	flag.Parse()

	err := os.MkdirAll(*dir, 0700)
	if err != nil {
		panic(err)
	}

	for i := 0; i < *num; i++ {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			panic(err)
		}

		path := filepath.Join(*dir, fmt.Sprintf("wallet-%d.json", i))
		err = donate.SaveKeypair(path, key)
		if err != nil {
			panic(err)
		}

		fmt.Printf("%s %s\n", path, key.PublicKey())
	}
}
