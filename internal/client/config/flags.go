package config

import (
	"flag"
	"os"

	"github.com/dkomarov/paperchat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-s string   backend base URL (default from Config)
//	-d string   local database path
//	-j string   cookie file path
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-d", "-j"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointURL, "s", cfg.ServerEndpointURL, "backend base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.CookiePath, "j", cfg.CookiePath, "cookie file path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
