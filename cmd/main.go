package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/h2non/filetype"

	"github.com/frank2/yapp"
)

var filename string

func init() {
	flag.StringVar(&filename, "filename", "", "Please enter the file path")
	flag.Parse()
}

type Info struct {
	Machine       uint16
	Architecture  string
	EntryPoint    uint32
	ImageBase     uint64
	Checksum      uint32
	ChecksumValid bool
	Sections      []*Section
	Directories   []int
	ExportDLL     string
	Exports       []string
}

type Section struct {
	Name           string
	Flags          string
	RawSize        uint32
	VirtualAddress uint32
	VirtualSize    uint32
	DataType       string
}

func archName(arch yapp.Arch) string {
	switch arch {
	case yapp.ArchI386:
		return "i386"
	case yapp.ArchAMD64:
		return "amd64"
	case yapp.ArchARM:
		return "arm"
	case yapp.ArchARM64:
		return "arm64"
	default:
		return "unsupported"
	}
}

func sectionFlags(characteristics uint32) (flags string) {
	if characteristics&yapp.ImageScnMemRead != 0 {
		flags += "r"
	}
	if characteristics&yapp.ImageScnMemExecute != 0 {
		flags += "x"
	}
	if characteristics&yapp.ImageScnMemWrite != 0 {
		flags += "w"
	}
	return flags
}

func getSections(pe *yapp.PE) ([]*Section, error) {
	table, err := pe.SectionTable()
	if err != nil {
		return nil, err
	}

	sections := make([]*Section, 0, table.Count())
	for i := 0; i < table.Count(); i++ {
		header, err := table.At(i)
		if err != nil {
			return nil, err
		}

		raw, err := header.Raw()
		if err != nil {
			return nil, err
		}

		name, err := header.Name()
		if err != nil {
			return nil, err
		}

		section := &Section{
			Name:           name,
			Flags:          sectionFlags(raw.Characteristics),
			RawSize:        raw.SizeOfRawData,
			VirtualAddress: raw.VirtualAddress,
			VirtualSize:    raw.VirtualSize,
			DataType:       "Data",
		}

		if data, err := header.Data(pe); err == nil {
			if raw, err := data.Bytes(); err == nil {
				section.DataType = GetFileType(raw)
			}
		}

		sections = append(sections, section)
	}
	return sections, nil
}

func getDirectories(pe *yapp.PE) ([]int, error) {
	directory, err := pe.DataDirectory()
	if err != nil {
		return nil, err
	}

	var present []int
	for i := 0; i < directory.Count(); i++ {
		if directory.HasDirectory(pe, i) {
			present = append(present, i)
		}
	}
	return present, nil
}

func getExports(pe *yapp.PE) (string, []string) {
	directory, err := pe.ExportDirectory()
	if err != nil {
		return "", nil
	}

	dll, _ := directory.Name(pe)

	var names []string
	if directory.Is32() {
		if exports, err := directory.Get32().ExportMap(pe); err == nil {
			for name := range exports {
				names = append(names, name)
			}
		}
	} else {
		if exports, err := directory.Get64().ExportMap(pe); err == nil {
			for name := range exports {
				names = append(names, name)
			}
		}
	}
	return dll, names
}

func main() {
	pe, err := yapp.Open(filename, yapp.ImageTypeDisk)
	if err != nil {
		log.Fatal(err)
	}

	machine, err := pe.Machine()
	if err != nil {
		log.Fatal(err)
	}

	arch, err := pe.Arch()
	if err != nil {
		log.Fatal(err)
	}

	entrypoint, err := pe.Entrypoint()
	if err != nil {
		log.Fatal(err)
	}

	base, err := pe.ImageBase()
	if err != nil {
		log.Fatal(err)
	}

	checksum, err := pe.CalculateChecksum()
	if err != nil {
		log.Fatal(err)
	}

	checksumValid, err := pe.ValidateChecksum()
	if err != nil {
		log.Fatal(err)
	}

	sections, err := getSections(pe)
	if err != nil {
		log.Fatal(err)
	}

	directories, err := getDirectories(pe)
	if err != nil {
		log.Fatal(err)
	}

	info := Info{
		Machine:       machine,
		Architecture:  archName(arch),
		EntryPoint:    uint32(entrypoint),
		ImageBase:     base,
		Checksum:      checksum,
		ChecksumValid: checksumValid,
		Sections:      sections,
		Directories:   directories,
	}
	info.ExportDLL, info.Exports = getExports(pe)

	data, _ := json.MarshalIndent(&info, "", "    ")
	fmt.Printf("%s\n", data)
}

func GetFileType(data []byte) string {
	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown {
		return "Data"
	}
	return kind.MIME.Value
}
