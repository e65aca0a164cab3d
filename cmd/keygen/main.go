package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/envelope"
)

func main() {
	var (
		outDir string
		bits   int
		force  bool
	)
	flag.StringVar(&outDir, "out", ".", "directory for private.pem and public.pem")
	flag.IntVar(&bits, "bits", 2048, "RSA modulus size")
	flag.BoolVar(&force, "force", false, "overwrite existing key files")
	flag.Parse()

	if bits < 2048 {
		fmt.Fprintln(os.Stderr, "bits must be at least 2048")
		os.Exit(1)
	}

	privPath := filepath.Join(outDir, "private.pem")
	pubPath := filepath.Join(outDir, "public.pem")
	if !force {
		for _, p := range []string{privPath, pubPath} {
			if _, err := os.Stat(p); err == nil {
				fmt.Fprintf(os.Stderr, "%s exists, use -force to overwrite\n", p)
				os.Exit(1)
			}
		}
	}

	privPEM, pubPEM, err := envelope.GenerateKeyPair(bits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", outDir, err)
		os.Exit(1)
	}
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write private key: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write public key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s and %s\nset RSA_PRIVATE_KEY_PATH=%s\n", privPath, pubPath, privPath)
}
