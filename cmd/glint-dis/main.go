// glint-dis inspects and reassembles compiled bytecode images.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/glint-lang/glint/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("glint-dis")

// config is the optional TOML config file. Flags override it.
//
//	[log]
//	verbosity = 1
//
//	[format]
//	source_locs = true
type config struct {
	Log struct {
		Verbosity int `toml:"verbosity"`
	} `toml:"log"`
	Format struct {
		// SourceLocs acknowledges that pack input carries location
		// suffixes. Locations never travel in the image; without this
		// the discard is warned about.
		SourceLocs bool `toml:"source_locs"`
	} `toml:"format"`
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: glint-dis <command> [options] <file>\n\n")
	fmt.Fprintf(os.Stderr, "Inspects and reassembles compiled bytecode images.\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  dump   decode a CBOR image and print its disassembly\n")
	fmt.Fprintf(os.Stderr, "  pack   assemble disassembly text into a CBOR image\n")
	fmt.Fprintf(os.Stderr, "  check  verify an image round-trips and upholds its invariants\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  glint-dis dump main.glintbc            # Disassemble to stdout\n")
	fmt.Fprintf(os.Stderr, "  glint-dis pack -o main.glintbc main.dis  # Reassemble\n")
	fmt.Fprintf(os.Stderr, "  glint-dis check main.glintbc           # Verify\n")
	fmt.Fprintf(os.Stderr, "  glint-dis dump -config dis.toml main.glintbc\n")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "dump":
		err = runDump(rest)
	case "pack":
		err = runPack(rest)
	case "check":
		err = runCheck(rest)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "glint-dis: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseCommon wires the flags every subcommand shares and returns the
// merged config and positional arguments.
func parseCommon(fs *flag.FlagSet, args []string) (config, []string, error) {
	configPath := fs.String("config", "", "TOML config file")
	verbosity := fs.Int("v", -1, "Log verbosity (overrides config)")
	if err := fs.Parse(args); err != nil {
		return config{}, nil, err
	}

	var cfg config
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			return config{}, nil, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)
	return cfg, fs.Args(), nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	out := fs.String("o", "", "Output file (default stdout)")
	_, rest, err := parseCommon(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("dump expects exactly one image file")
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		return err
	}
	seq, err := bytecode.Unmarshal(data)
	if err != nil {
		return err
	}
	log.Infof("decoded %s: %d instructions, %d slots", rest[0], seq.Len(), seq.SlotCount())

	text := bytecode.Format(seq) + "\n"
	if *out == "" {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(*out, []byte(text), 0o644)
}

func runPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	out := fs.String("o", "", "Output image file (required)")
	name := fs.String("name", "", "Sequence name recorded in the image")
	cfg, rest, err := parseCommon(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("pack expects exactly one disassembly file")
	}
	if *out == "" {
		return fmt.Errorf("pack requires -o <image file>")
	}

	text, err := os.ReadFile(rest[0])
	if err != nil {
		return err
	}
	if strings.Contains(string(text), " @ ") && !cfg.Format.SourceLocs {
		log.Warning("input carries source locations; they do not travel in the image")
	}
	seq, err := bytecode.Parse(string(text))
	if err != nil {
		return err
	}
	if *name != "" {
		seq = bytecode.NewSequence(*name, seq.Instructions(), seq.SlotCount())
	}
	if err := seq.Validate(); err != nil {
		return err
	}

	data, err := bytecode.Marshal(seq)
	if err != nil {
		return err
	}
	log.Infof("packed %d instructions into %d bytes", seq.Len(), len(data))
	return os.WriteFile(*out, data, 0o644)
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	_, rest, err := parseCommon(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("check expects exactly one image file")
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		return err
	}
	// Unmarshal already enforces the operand pairing and jump-target
	// invariants; the rest of check is round-trip fidelity.
	seq, err := bytecode.Unmarshal(data)
	if err != nil {
		return err
	}

	back, err := bytecode.Parse(bytecode.Format(seq))
	if err != nil {
		return fmt.Errorf("disassembly does not reassemble: %w", err)
	}
	// Reassembly derives its slot count from the instructions; carry the
	// recorded count over so the comparison is instruction-for-instruction.
	back = bytecode.NewSequence(seq.Name(), back.Instructions(), seq.SlotCount())
	if !seq.Eq(back) {
		return fmt.Errorf("disassembly round trip altered the sequence")
	}

	reenc, err := bytecode.Marshal(seq)
	if err != nil {
		return err
	}
	if string(reenc) != string(data) {
		return fmt.Errorf("image is not in canonical encoding (re-encoding differs)")
	}

	fmt.Printf("%s: ok (%d instructions, %d slots)\n", rest[0], seq.Len(), seq.SlotCount())
	return nil
}
