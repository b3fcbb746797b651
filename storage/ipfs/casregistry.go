package ipfs

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"xdao.co/pixzle/storage"
	"xdao.co/pixzle/storage/casregistry"
)

var (
	flagBin  string
	flagPath string
	flagPin  bool
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Local IPFS repo via the Kubo CLI (no daemon needed)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *pflag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "ipfs", "Path to the ipfs binary (for --backend=ipfs)")
			fs.StringVar(&flagPath, "ipfs-path", "", "IPFS repo directory; sets IPFS_PATH (for --backend=ipfs)")
			fs.BoolVar(&flagPin, "ipfs-pin", false, "Pin written blocks (for --backend=ipfs)")
		},
		Open: func() (storage.CAS, func() error, error) {
			return New(optionsFor(flagBin, flagPath, flagPin)), nil, nil
		},
		OpenConfig: func(cfg map[string]string) (storage.CAS, func() error, error) {
			return New(optionsFor(cfg["ipfs-bin"], cfg["ipfs-path"], parseBool(cfg["ipfs-pin"]))), nil, nil
		},
	})
}

func optionsFor(bin, repo string, pin bool) Options {
	opts := Options{Bin: bin, Pin: pin}
	if repo != "" {
		opts.Env = append(os.Environ(), "IPFS_PATH="+repo)
	}
	return opts
}

// parseBool accepts the spellings config files use for flags.
func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
