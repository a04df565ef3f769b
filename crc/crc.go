package crc

import "fmt"

type CRC struct {
	Name    string
	Init    uint8
	Poly    uint8
	Residue uint8

	tbl Table
}

func NewCRC(name string, init, poly, residue uint8) (crc CRC) {
	crc.Name = name
	crc.Init = init
	crc.Poly = poly
	crc.Residue = residue
	crc.tbl = NewTable(crc.Poly)

	return
}

func (crc CRC) String() string {
	return fmt.Sprintf("{Name:%s Init:0x%02X Poly:0x%02X Residue:0x%02X}", crc.Name, crc.Init, crc.Poly, crc.Residue)
}

func (crc CRC) Checksum(data []byte) uint8 {
	return Checksum(crc.Init, data, crc.tbl)
}

type Table [256]uint8

func NewTable(poly uint8) (table Table) {
	for tIdx := range table {
		crc := uint8(tIdx)
		for bIdx := 0; bIdx < 8; bIdx++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc = crc << 1
			}
		}
		table[tIdx] = crc
	}
	return table
}

func Checksum(init uint8, data []byte, table Table) (crc uint8) {
	crc = init
	for _, v := range data {
		crc = table[crc^v]
	}
	return
}
