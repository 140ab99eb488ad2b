package config

import (
	"flag"
	"io"
	"slices"

	"github.com/celerix-dev/celerix-hr/internal/flagx"
)

// ValuedFlags and BoolFlags are the command-line flags parseFlags reads.
//
//	-b string   backend: memory, sqlite, postgres or remote
//	-dir string data directory
//	-sqlite     SQLite database file
//	-d string   PostgreSQL DSN
//	-r string   remote store address
//	-p string   TCP port of the store daemon
//	-w string   HTTP port of the store daemon
//	-layout     key layout: namespaced or legacy
//	-g int      max ids per index group
//	-k string   hex vault key for biometric data
//	-l string   log level
//	-f string   log format: text or json
//	-tls        TLS on the store connection (-tls=false disables)
var (
	ValuedFlags = []string{"-b", "-dir", "-sqlite", "-d", "-r", "-p", "-w", "-layout", "-g", "-k", "-l", "-f"}
	BoolFlags   = []string{"-tls"}
)

// Args returns the arguments that are not configuration flags, such as a
// CLI command and its operands.
func Args(args []string) []string {
	_, rest := flagx.Split(args, slices.Concat(ValuedFlags, []string{"-c", "-config", "--config"}), BoolFlags)
	return rest
}

func parseFlags(c *Config, args []string) error {
	kept, _ := flagx.Split(args, ValuedFlags, BoolFlags)

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Backend, "b", c.Backend, "storage backend")
	fs.StringVar(&c.DataDir, "dir", c.DataDir, "data directory")
	fs.StringVar(&c.SQLitePath, "sqlite", c.SQLitePath, "SQLite database file")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.RemoteAddr, "r", c.RemoteAddr, "remote store address")
	fs.StringVar(&c.TCPPort, "p", c.TCPPort, "TCP port")
	fs.StringVar(&c.HTTPPort, "w", c.HTTPPort, "HTTP port")
	fs.StringVar(&c.Layout, "layout", c.Layout, "key layout")
	fs.IntVar(&c.MaxGroupSize, "g", c.MaxGroupSize, "max ids per index group")
	fs.StringVar(&c.VaultKey, "k", c.VaultKey, "hex vault key")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "f", c.LogFormat, "log format")
	fs.BoolVar(&c.TLS, "tls", c.TLS, "use TLS")

	return fs.Parse(kept)
}
