package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"
	"github.com/vietanhduong/ksym/pkg/kernel"
	"github.com/vietanhduong/ksym/pkg/syms"
)

type arguments struct {
	name        string
	addr        string
	match       string
	matchEvents string
	require     string
	moduleBTF   bool
	configFile  string
}

func parseArgs() (*arguments, error) {
	var args arguments
	fs := flag.CommandLine

	fs.StringVar(&args.name, "name", "", "Resolve an event (group:target) or function name")
	fs.StringVar(&args.addr, "addr", "", "Resolve the symbol at this address (hex with 0x, or decimal)")
	fs.StringVar(&args.match, "match", "", "Resolve the traceable functions matching a glob pattern")
	fs.StringVar(&args.matchEvents, "match-events", "", "Resolve the events matching a glob pattern")
	fs.StringVar(&args.require, "require", "",
		"Fail unless the kernel supports OPTION[:module], e.g. CONFIG_NF_CONNTRACK:nf_conntrack")
	fs.BoolVar(&args.moduleBTF, "module-btf", false, "Also load the BTF of kernel modules")
	fs.StringVar(&args.configFile, "config", "", "Path to a configuration file")

	return &args, ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("KSYM"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	)
}

func main() {
	args, err := parseArgs()
	if err != nil {
		glog.Errorf("Failed to parse arguments: %v", err)
		os.Exit(1)
	}
	defer glog.Flush()

	k, err := kernel.New(&kernel.Options{ModuleBTF: args.moduleBTF})
	if err != nil {
		glog.Errorf("Failed to inspect the kernel: %v", err)
		glog.Flush()
		os.Exit(1)
	}

	if err := run(args, k, os.Stdout); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run(args *arguments, k syms.Introspector, out io.Writer) error {
	queries := 0
	for _, q := range []string{args.name, args.addr, args.match, args.matchEvents} {
		if q != "" {
			queries++
		}
	}
	if queries > 1 {
		return errors.New("only one of -name, -addr, -match and -match-events can be set")
	}
	if queries == 0 && args.require == "" {
		return errors.New("nothing to do, set one of -name, -addr, -match, -match-events or -require")
	}

	if args.require != "" {
		option, module := parseRequirement(args.require)
		if err := kernel.CheckFeature(k, option, module); err != nil {
			return fmt.Errorf("check %s: %w", args.require, err)
		}
		glog.Infof("Kernel supports %s", args.require)
	}

	r := syms.NewResolver(k)
	var symbols []syms.Symbol
	switch {
	case args.name != "":
		sym, err := r.FromName(args.name)
		if err != nil {
			return err
		}
		symbols = append(symbols, sym)
	case args.addr != "":
		addr, err := strconv.ParseUint(args.addr, 0, 64)
		if err != nil {
			return fmt.Errorf("parse address %q: %w", args.addr, err)
		}
		sym, err := r.FromAddr(addr)
		if err != nil {
			return err
		}
		symbols = append(symbols, sym)
	case args.match != "":
		var err error
		if symbols, err = r.MatchingFunctions(args.match); err != nil {
			return err
		}
	case args.matchEvents != "":
		var err error
		if symbols, err = r.MatchingEvents(args.matchEvents); err != nil {
			return err
		}
	default:
		return nil
	}
	return printSymbols(out, symbols)
}

// parseRequirement splits OPTION[:module]. The CONFIG_ prefix is optional.
func parseRequirement(s string) (option, module string) {
	option, module, _ = strings.Cut(s, ":")
	if !strings.HasPrefix(option, "CONFIG_") {
		option = "CONFIG_" + option
	}
	return option, module
}

func printSymbols(out io.Writer, symbols []syms.Symbol) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tATTACH\tADDR NAME\tTYPEDEF\tADDRESS\tNARGS")
	for _, sym := range symbols {
		addr := "-"
		if a, err := sym.Addr(); err == nil {
			addr = fmt.Sprintf("0x%x", a)
		} else {
			glog.V(2).Infof("No address for %s: %v", sym, err)
		}
		nargs := "-"
		if n, err := sym.Nargs(); err == nil {
			nargs = strconv.FormatUint(uint64(n), 10)
		} else {
			glog.V(2).Infof("No argument layout for %s: %v", sym, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sym.Kind(), sym.Name(), sym.AttachName(), sym.AddrName(), sym.TypedefName(), addr, nargs)
	}
	return w.Flush()
}
