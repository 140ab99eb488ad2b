// Package flagx picks a component's own flags out of a shared command line.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// Split separates args into the allowed flags (with their values) and the
// remaining arguments, preserving order in both.
//
// Supported forms:
//
//	-c conf.json    flag and value as separate arguments
//	--config=x      flag and value joined with '='
//	-tls            a boolean flag; never consumes the next argument
//
// A valued flag takes the next argument as its value unless that argument
// starts with '-'.
func Split(args, allowed, boolean []string) (kept, rest []string) {
	valued := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		valued[f] = struct{}{}
	}
	bools := make(map[string]struct{}, len(boolean))
	for _, f := range boolean {
		bools[f] = struct{}{}
	}

	kept = make([]string, 0, len(args))
	rest = make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			_, v := valued[name]
			_, b := bools[name]
			if v || b {
				kept = append(kept, arg)
			} else {
				rest = append(rest, arg)
			}
			continue
		}

		if _, ok := bools[arg]; ok {
			kept = append(kept, arg)
			continue
		}
		if _, ok := valued[arg]; ok {
			kept = append(kept, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				kept = append(kept, args[i+1])
				i++
			}
			continue
		}
		rest = append(rest, arg)
	}
	return kept, rest
}

// FilterArgs returns only the allowed flags and their values.
func FilterArgs(args, allowed []string) []string {
	kept, _ := Split(args, allowed, nil)
	return kept
}

// ConfigPath extracts the JSON config file path given with -c or -config,
// or "" when neither is present.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
