package main

import (
	"fmt"
	"io"
	"os"

	_ "xdao.co/pixzle/storage/grpccas"
	_ "xdao.co/pixzle/storage/ipfs"
	_ "xdao.co/pixzle/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "shuffle":
		return cmdShuffle(args[1:], out, errOut)
	case "restore":
		return cmdRestore(args[1:], out, errOut)
	case "manifest-cid":
		return cmdManifestCID(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "seal":
		return cmdSeal(args[1:], out, errOut)
	case "unseal":
		return cmdUnseal(args[1:], out, errOut)
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "backends":
		return cmdBackends(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "pixzle: reversible image block fragmentation")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pixzle shuffle <images...> -o <dir> [-b <size>] [-p <prefix>] [-s <seed>] [--preserve-name] [--cross-image-shuffle]")
	fmt.Fprintln(w, "                 [-f png|jpeg] [-c 3|4] [--jpeg-quality low|normal|high|0-100] [--png-compression 0-9] [--record-cids]")
	fmt.Fprintln(w, "  pixzle restore <fragments...> -m <manifest> -o <dir> [--mode permissive|strict] [--identity <file>]")
	fmt.Fprintln(w, "  pixzle restore --bundle <file> -o <dir>")
	fmt.Fprintln(w, "  pixzle restore --cid <manifest CID> -o <dir> (--backend <name> | --cas-config <file>)")
	fmt.Fprintln(w, "  pixzle manifest-cid <manifest>")
	fmt.Fprintln(w, "  pixzle sign <manifest> (--signer <name> [--signer-role <role>] | --key-file <path> | --seed-hex <64hex>) [--algorithm ed25519|dilithium3]")
	fmt.Fprintln(w, "  pixzle verify <manifest> [--sig <file>] [--key <public key>]")
	fmt.Fprintln(w, "  pixzle seal <manifest> [--recipient <age1...> ...] [-o <file>]")
	fmt.Fprintln(w, "  pixzle unseal <file> [--identity <file>] [-o <file>]")
	fmt.Fprintln(w, "  pixzle put <dir> (--backend <name> | --cas-config <file>)")
	fmt.Fprintln(w, "  pixzle get <manifest CID> -o <dir> (--backend <name> | --cas-config <file>)")
	fmt.Fprintln(w, "  pixzle bundle export <dir> -o <file> [--compression none|zstd|lz4]")
	fmt.Fprintln(w, "  pixzle bundle import <file> -o <dir>")
	fmt.Fprintln(w, "  pixzle key init --name <name> [--seed-hex <64hex>] [--algorithm ed25519|dilithium3] [--force]")
	fmt.Fprintln(w, "  pixzle key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  pixzle key list")
	fmt.Fprintln(w, "  pixzle key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  pixzle backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - every command accepts --config <file> (or PIXZLE_CONFIG) and --verbose")
	fmt.Fprintln(w, "  - the manifest carries the seed; seal it before sharing fragments")
	fmt.Fprintln(w, "  - sealed manifests are opened with --identity, PIXZLE_PASSPHRASE or a terminal prompt")
	fmt.Fprintln(w, "  - sign writes <manifest>.sig next to the manifest")
}
