package linker

import (
	"github.com/hcyang1106/rvld/pkg/utils"
)

// RISC-V immediate encodings. Each helper returns val scattered into the
// immediate bit positions of its instruction format.

func itype(val uint32) uint32 {
	return val << 20
}

func stype(val uint32) uint32 {
	return utils.Bits(val, 11, 5)<<25 | utils.Bits(val, 4, 0)<<7
}

func btype(val uint32) uint32 {
	return utils.Bit(val, 12)<<31 | utils.Bits(val, 10, 5)<<25 |
		utils.Bits(val, 4, 1)<<8 | utils.Bit(val, 11)<<7
}

// rounds so that the sign-extended low 12 bits add back to val
func utype(val uint32) uint32 {
	return (val + 0x800) & 0xffff_f000
}

func jtype(val uint32) uint32 {
	return utils.Bit(val, 20)<<31 | utils.Bits(val, 10, 1)<<21 |
		utils.Bit(val, 11)<<20 | utils.Bits(val, 19, 12)<<12
}

func cbtype(val uint16) uint16 {
	return utils.Bit(val, 8)<<12 | utils.Bit(val, 4)<<11 | utils.Bit(val, 3)<<10 |
		utils.Bit(val, 7)<<6 | utils.Bit(val, 6)<<5 | utils.Bit(val, 2)<<4 |
		utils.Bit(val, 1)<<3 | utils.Bit(val, 5)<<2
}

func cjtype(val uint16) uint16 {
	return utils.Bit(val, 11)<<12 | utils.Bit(val, 4)<<11 | utils.Bit(val, 9)<<10 |
		utils.Bit(val, 8)<<9 | utils.Bit(val, 10)<<8 | utils.Bit(val, 6)<<7 |
		utils.Bit(val, 7)<<6 | utils.Bit(val, 3)<<5 | utils.Bit(val, 2)<<4 |
		utils.Bit(val, 1)<<3 | utils.Bit(val, 5)<<2
}

func read32(loc []byte) uint32 {
	var v uint32
	utils.Read[uint32](loc, &v)
	return v
}

func read16(loc []byte) uint16 {
	var v uint16
	utils.Read[uint16](loc, &v)
	return v
}

func writeItype(loc []byte, val uint32) {
	mask := uint32(0b000000_00000_11111_111_11111_1111111)
	utils.Write[uint32](loc, (read32(loc)&mask)|itype(val))
}

func writeStype(loc []byte, val uint32) {
	mask := uint32(0b000000_11111_11111_111_00000_1111111)
	utils.Write[uint32](loc, (read32(loc)&mask)|stype(val))
}

func writeBtype(loc []byte, val uint32) {
	mask := uint32(0b000000_11111_11111_111_00000_1111111)
	utils.Write[uint32](loc, (read32(loc)&mask)|btype(val))
}

func writeUtype(loc []byte, val uint32) {
	mask := uint32(0b000000_00000_00000_000_11111_1111111)
	utils.Write[uint32](loc, (read32(loc)&mask)|utype(val))
}

func writeJtype(loc []byte, val uint32) {
	mask := uint32(0b000000_00000_00000_000_11111_1111111)
	utils.Write[uint32](loc, (read32(loc)&mask)|jtype(val))
}

func writeCBtype(loc []byte, val uint16) {
	mask := uint16(0b111_000_111_00000_11)
	utils.Write[uint16](loc, (read16(loc)&mask)|cbtype(val))
}

func writeCJtype(loc []byte, val uint16) {
	mask := uint16(0b111_00000000000_11)
	utils.Write[uint16](loc, (read16(loc)&mask)|cjtype(val))
}

// setRs1 replaces the rs1 field (bits 19:15) of the instruction at loc.
func setRs1(loc []byte, rs1 uint32) {
	v := read32(loc) &^ (0b11111 << 15)
	utils.Write[uint32](loc, v|(rs1&0b11111)<<15)
}

func read64(loc []byte) uint64 {
	var v uint64
	utils.Read[uint64](loc, &v)
	return v
}
