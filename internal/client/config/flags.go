package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/callshield/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Arguments it does not know are filtered out first with flagx.FilterArgs.
//
//	-a addr   server endpoint
//	-d path   local database
//	-i secs   online check interval
//	-s secs   sync sweep interval
//	-r code   device area code
//	-k key    phone hash key
//	-t score  trust threshold
//	-b score  block threshold
//	-l level  log level
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-i", "-s", "-r", "-k", "-t", "-b", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to local database")
	fs.StringVar(&cfg.DeviceAreaCode, "r", cfg.DeviceAreaCode, "device area code")
	fs.StringVar(&cfg.HashKey, "k", cfg.HashKey, "phone hash key")
	fs.IntVar(&cfg.TrustThreshold, "t", cfg.TrustThreshold, "score at or above which numbers are allowed")
	fs.IntVar(&cfg.BlockThreshold, "b", cfg.BlockThreshold, "score at or below which numbers are blocked")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync sweep interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
