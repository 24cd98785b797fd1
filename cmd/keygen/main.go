// Command keygen prints a fresh ECDSA P-256 key for JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"chandabaz/internal/auth"
)

func main() {
	out := flag.String("out", "", "also write the PEM key to this file")
	flag.Parse()

	privateKeyPEM, err := auth.GenerateECKeyPEM()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Generated ECDSA P-256 key for JWT signing.")
	fmt.Println("\nAdd this to your .env file:")
	fmt.Println("----------------------------------------")
	fmt.Printf("JWT_SECRET=%s\n", strings.ReplaceAll(string(privateKeyPEM), "\n", `\n`))

	if *out == "" {
		return
	}
	if err := os.WriteFile(*out, privateKeyPEM, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write private key file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nPrivate key saved to: %s\n", *out)
}
