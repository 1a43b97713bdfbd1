// Package flagx lets each config loader parse only its own flags out of a
// shared command line.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnvVar names the environment variable consulted when no -c/-config
// flag is present on the command line.
const ConfigEnvVar = "CALLSHIELD_CONFIG"

// flagName strips the leading dashes and any "=value" suffix. The flag
// package accepts -name and --name alike, so both spellings match.
func flagName(arg string) string {
	name := strings.TrimLeft(arg, "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		name = name[:i]
	}
	return name
}

// FilterArgs keeps the arguments in args that belong to allowedFlags,
// together with their values, and drops everything else. Both "-f value"
// and "-f=value" are understood. A following token that starts with a dash
// is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "--" {
			continue
		}
		if _, ok := allowed[flagName(arg)]; !ok {
			continue
		}

		filtered = append(filtered, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigPath returns the JSON config path named by -c or -config in args,
// falling back to getenv(ConfigEnvVar).
func ConfigPath(args []string, getenv func(string) string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	if config == "" && getenv != nil {
		config = getenv(ConfigEnvVar)
	}
	return config
}

// JsonConfigFlags is ConfigPath over the process arguments and environment.
func JsonConfigFlags() string {
	return ConfigPath(os.Args[1:], os.Getenv)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
