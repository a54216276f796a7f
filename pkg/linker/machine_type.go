package linker

import (
	"debug/elf"

	"github.com/hcyang1106/rvld/pkg/utils"
)

type MachineType uint8

const (
	MachineTypeNone MachineType = iota
	MachineTypeRISCV64
)

func (m MachineType) String() string {
	switch m {
	case MachineTypeNone:
		return "none"
	case MachineTypeRISCV64:
		return "riscv64"
	}

	utils.Assert(false)
	return ""
}

func GetMachineTypeFromContent(content []byte) MachineType {
	switch GetFileTypeFromContent(content) {
	case FileTypeObject:
		var machineType uint16
		utils.Read[uint16](content[18:], &machineType)
		switch elf.Machine(machineType) {
		case elf.EM_RISCV:
			switch elf.Class(content[elf.EI_CLASS]) {
			case elf.ELFCLASS64:
				return MachineTypeRISCV64
			}
		}
	}

	return MachineTypeNone
}
