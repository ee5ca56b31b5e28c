package gadget

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"

	"github.com/pkg/errors"
)

// Executable is the loaded result of the Binary loader: the raw
// bytes of the executable section and its runtime load address.
type Executable struct {
	Bytes       []byte
	BaseAddress uint64
}

// LoadExecutable parses path as ELF, PE or Mach-O (tried in that order) and
// returns the first present `.text` (ELF/PE) or `__text` (Mach-O) section.
// No third-party binding in the pack covers multi-format object parsing the
// way Rust's `object` crate does; the standard library's three
// format-specific packages are the idiomatic Go answer and are used
// directly here (see DESIGN.md).
func LoadExecutable(path string) (*Executable, error) {
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		return loadELF(f)
	}
	if f, err := pe.Open(path); err == nil {
		defer f.Close()
		return loadPE(f)
	}
	if f, err := macho.Open(path); err == nil {
		defer f.Close()
		return loadMachO(f)
	}
	return nil, fmt.Errorf("binary: %q is not a recognized ELF, PE or Mach-O file", path)
}

func loadELF(f *elf.File) (*Executable, error) {
	switch f.Data {
	case elf.ELFDATA2MSB:
		return nil, fmt.Errorf("binary: big-endian ELF binaries are not supported")
	}

	sect := f.Section(".text")
	if sect == nil {
		return nil, fmt.Errorf("binary: no '.text' section present")
	}
	data, err := sect.Data()
	if err != nil {
		return nil, errors.Wrap(err, "binary: reading '.text' section")
	}
	return &Executable{Bytes: data, BaseAddress: sect.Addr}, nil
}

func loadPE(f *pe.File) (*Executable, error) {
	sect := f.Section(".text")
	if sect == nil {
		return nil, fmt.Errorf("binary: no '.text' section present")
	}
	data, err := sect.Data()
	if err != nil {
		return nil, errors.Wrap(err, "binary: reading '.text' section")
	}

	var imageBase uint64
	switch opt := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(opt.ImageBase)
	case *pe.OptionalHeader64:
		imageBase = opt.ImageBase
	}
	return &Executable{Bytes: data, BaseAddress: imageBase + uint64(sect.VirtualAddress)}, nil
}

func loadMachO(f *macho.File) (*Executable, error) {
	if f.ByteOrder.String() == "BigEndian" {
		return nil, fmt.Errorf("binary: big-endian Mach-O binaries are not supported")
	}

	sect := f.Section("__text")
	if sect == nil {
		return nil, fmt.Errorf("binary: no '__text' section present")
	}
	data, err := sect.Data()
	if err != nil {
		return nil, errors.Wrap(err, "binary: reading '__text' section")
	}
	return &Executable{Bytes: data, BaseAddress: sect.Addr}, nil
}
