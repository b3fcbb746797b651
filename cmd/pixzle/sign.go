package main

import (
	"fmt"
	"io"

	"xdao.co/pixzle/keys"
	"xdao.co/pixzle/manifest"
)

func cmdManifestCID(args []string, out io.Writer, errOut io.Writer) int {
	fs, _ := newFlagSet("manifest-cid", errOut)
	seal := addSealFlags(fs)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pixzle manifest-cid <manifest>")
		return 2
	}
	m, err := readManifest(fs.Arg(0), seal, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	id, err := manifest.CID(m)
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs, c := newFlagSet("sign", errOut)
	seal := addSealFlags(fs)

	var seedHex, signerName, signerRole, keyFile, algorithm, hashAlg, sigPath string
	fs.StringVar(&seedHex, "seed-hex", "", "Signing seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name (from 'pixzle key init')")
	fs.StringVar(&signerRole, "signer-role", "", "With --signer, use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file (hex)")
	fs.StringVar(&algorithm, "algorithm", "", "Signature algorithm: ed25519 (default) or dilithium3")
	fs.StringVar(&hashAlg, "hash", "", "Digest: sha256, sha512 or sha3-256 (default depends on algorithm)")
	fs.StringVarP(&sigPath, "output", "o", "", "Signature file (default <manifest>"+keys.SignatureSuffix+")")

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pixzle sign <manifest> (--signer <name> | --key-file <path> | --seed-hex <64hex>)")
		return 2
	}
	cfg, logger, err := c.setup(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	if signerName == "" && seedHex == "" && keyFile == "" {
		signerName, signerRole = cfg.Keys.Signer, cfg.Keys.Role
	}
	if seedHex == "" && signerName == "" && keyFile == "" {
		fmt.Fprintln(errOut, "missing signer: use --seed-hex, --signer, or --key-file")
		return 2
	}
	if seedHex != "" && (signerName != "" || keyFile != "") {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --signer or --key-file")
		return 2
	}
	if signerName != "" && keyFile != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --signer cannot be combined with --key-file")
		return 2
	}
	if algorithm == "" {
		algorithm = cfg.Keys.Algorithm
	}
	if algorithm == "" {
		algorithm = keys.AlgEd25519
	}

	ks, err := keys.CreateKeyStore(cfg.Keys.Directory)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	seed, err := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}
	signer, err := keys.NewSigner(algorithm, hashAlg, seed)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}

	manifestPath := fs.Arg(0)
	m, err := readManifest(manifestPath, seal, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	sig, err := keys.SignManifest(m, signer)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	if sigPath == "" {
		sigPath = manifestPath + keys.SignatureSuffix
	}
	if err := keys.WriteSignatureFile(sigPath, sig); err != nil {
		fmt.Fprintf(errOut, "write signature: %v\n", err)
		return 1
	}
	logger.Debug("signed manifest", "manifest_cid", sig.ManifestCID, "algorithm", sig.Algorithm, "hash", sig.Hash)
	fmt.Fprintf(errOut, "Public-Key: %s\n", sig.PublicKey)
	_, _ = fmt.Fprintln(out, sigPath)
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs, _ := newFlagSet("verify", errOut)
	seal := addSealFlags(fs)

	var sigPath, trusted string
	fs.StringVar(&sigPath, "sig", "", "Signature file (default <manifest>"+keys.SignatureSuffix+")")
	fs.StringVar(&trusted, "key", "", "Require this public key (<algorithm>:<base64>)")

	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: pixzle verify <manifest> [--sig <file>] [--key <public key>]")
		return 2
	}
	if trusted != "" {
		if _, _, err := keys.ParsePublicKey(trusted); err != nil {
			fmt.Fprintf(errOut, "invalid --key: %v\n", err)
			return 2
		}
	}
	manifestPath := fs.Arg(0)
	if sigPath == "" {
		sigPath = manifestPath + keys.SignatureSuffix
	}
	m, err := readManifest(manifestPath, seal, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	sig, err := keys.ReadSignatureFile(sigPath)
	if err != nil {
		fmt.Fprintf(errOut, "read signature: %v\n", err)
		return 1
	}
	if err := keys.VerifyManifest(m, sig, trusted); err != nil {
		fmt.Fprintf(errOut, "invalid: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "OK %s\n", sig.PublicKey)
	return 0
}
