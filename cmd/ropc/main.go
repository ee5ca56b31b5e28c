package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/teris-io/cli"

	"github.com/ropcompiler/ropc/pkg/gadget"
	"github.com/ropcompiler/ropc/pkg/rop"
)

var Description = strings.ReplaceAll(`
ropc compiles a gadget-chain source file against a target executable, locating
each requested instruction snippet in the binary and emitting a payload of
addresses ready for injection into a vulnerable process.
`, "\n", " ")

const version = "0.0.1"

var Ropc = cli.New(Description).
	WithOption(cli.NewOption("cputype", "Target CPU type").WithChar('c').WithType(cli.TypeString)).
	WithOption(cli.NewOption("syntax", "Assembly syntax (required for x86 modes)").WithChar('s').WithType(cli.TypeString)).
	WithOption(cli.NewOption("bytewise", "Use KMP bytewise search instead of mnemonic-wise").WithChar('b').WithType(cli.TypeBool)).
	WithOption(cli.NewOption("byteorder", "Reverse byte order for little-endian alignment").WithChar('e').WithType(cli.TypeBool)).
	WithOption(cli.NewOption("individually", "Echo the candidate alongside each address").WithChar('i').WithType(cli.TypeBool)).
	WithOption(cli.NewOption("list", "Reserved for all-matches mode (currently behaves as first-match)").WithChar('l').WithType(cli.TypeBool)).
	WithOption(cli.NewOption("bitwidth", "Pad addresses to this width in bits (16, 32 or 64)").WithChar('w').WithType(cli.TypeString)).
	WithOption(cli.NewOption("version", "Print the version and exit").WithType(cli.TypeBool)).
	WithArg(cli.NewArg("files", "The .rop source file and the target binary, in either order").AsVariadic()).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if options["version"] == "true" {
		fmt.Println(version)
		return 0
	}

	sourcePath, binaryPath, err := splitPositionals(args)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		return 1
	}

	opts, err := parseOptions(options)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		return 1
	}

	payload, err := compile(sourcePath, binaryPath, opts)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		return 1
	}

	fmt.Print(payload)
	return 0
}

// splitPositionals implements the "is this a .rop source or a binary" sniff
// (§6): a file is the source iff its extension is .rop, the binary
// otherwise, regardless of argument order.
func splitPositionals(args []string) (source, binary string, err error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("expected exactly one .rop source file and one binary (got %d arguments)", len(args))
	}

	for _, a := range args {
		if strings.HasSuffix(a, ".rop") {
			if source != "" {
				return "", "", fmt.Errorf("expected exactly one .rop source file")
			}
			source = a
		} else {
			if binary != "" {
				return "", "", fmt.Errorf("expected exactly one binary file")
			}
			binary = a
		}
	}

	if source == "" || binary == "" {
		return "", "", fmt.Errorf("expected exactly one .rop source file and one binary executable")
	}
	return source, binary, nil
}

func parseOptions(options map[string]string) (gadget.Options, error) {
	cputype := options["cputype"]
	if cputype == "" {
		return gadget.Options{}, fmt.Errorf("missing required flag -c/--cputype")
	}
	arch, err := gadget.ParseArch(cputype)
	if err != nil {
		return gadget.Options{}, err
	}

	var syntax gadget.Syntax
	if syntaxFlag := options["syntax"]; syntaxFlag != "" {
		syntax, err = gadget.ParseSyntax(syntaxFlag)
		if err != nil {
			return gadget.Options{}, err
		}
	} else if strings.HasPrefix(cputype, "x86") {
		return gadget.Options{}, fmt.Errorf("missing required flag -s/--syntax for x86 modes")
	}

	bitwidth := 0
	if w := options["bitwidth"]; w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || (n != 16 && n != 32 && n != 64) {
			return gadget.Options{}, fmt.Errorf("invalid -w/--bitwidth value %q, expected 16, 32 or 64", w)
		}
		bitwidth = n
	}

	return gadget.Options{
		Arch:         arch,
		Syntax:       syntax,
		Bytewise:     options["bytewise"] == "true",
		ByteOrder:    options["byteorder"] == "true",
		Individually: options["individually"] == "true",
		Bitwidth:     bitwidth,
	}, nil
}

// compile runs the full pipeline: source reader -> lexer/parser -> IR pass
// -> type checker -> binary loader -> code generator.
func compile(sourcePath, binaryPath string, opts gadget.Options) (string, error) {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("unable to open source file: %w", err)
	}

	parser := rop.NewParser(string(src))
	program, err := parser.Parse()
	if err != nil {
		return "", err
	}

	irPass := rop.NewIRPass(program)
	program, err = irPass.Lower()
	if err != nil {
		return "", err
	}

	checker := rop.NewTypeChecker(program, string(src))
	if err := checker.Check(); err != nil {
		return "", err
	}

	section, err := gadget.LoadExecutable(binaryPath)
	if err != nil {
		return "", err
	}

	codegen, err := gadget.NewCodeGenerator(program, section, opts)
	if err != nil {
		return "", err
	}
	return codegen.Generate()
}

func main() { os.Exit(Ropc.Run(os.Args, os.Stdout)) }
