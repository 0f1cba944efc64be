// Package crcutil implements the CRC-8, CRC-16 and CRC-32 variants used by
// the FLAC and Ogg bitstreams. Tables are precomputed at package init, the
// same shape as the teacher's internal/hashutil/crc8 and crc16 packages, but
// folded into one-shot and incremental forms per spec §4.3.
package crcutil

// CRC-8, polynomial 0x07, initial value 0, no reflect, no XOR-out. Covers
// FLAC frame headers.
var crc8Table [256]uint8

// CRC-16, polynomial 0x8005, initial value 0. Covers FLAC frame footers.
var crc16Table [256]uint16

// CRC-32, Ogg's variant: polynomial 0x04C11DB7, initial 0, no reflect, no
// XOR-out, computed most-significant-byte first. Covers Ogg pages.
var crc32Table [256]uint32

func init() {
	for i := range crc8Table {
		r := uint8(i)
		for range 8 {
			if r&0x80 != 0 {
				r = (r << 1) ^ 0x07
			} else {
				r <<= 1
			}
		}
		crc8Table[i] = r
	}

	for i := range crc16Table {
		r := uint16(i) << 8
		for range 8 {
			if r&0x8000 != 0 {
				r = (r << 1) ^ 0x8005
			} else {
				r <<= 1
			}
		}
		crc16Table[i] = r
	}

	for i := range crc32Table {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04C11DB7
			} else {
				r <<= 1
			}
		}
		crc32Table[i] = r
	}
}

// UpdateCRC8 folds data into an accumulated CRC-8 value.
func UpdateCRC8(crc uint8, data []byte) uint8 {
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// CRC8 computes the CRC-8 of data in one shot.
func CRC8(data []byte) uint8 {
	return UpdateCRC8(0, data)
}

// UpdateCRC16 folds data into an accumulated CRC-16 value.
func UpdateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// CRC16 computes the CRC-16 of data in one shot.
func CRC16(data []byte) uint16 {
	return UpdateCRC16(0, data)
}

// UpdateCRC32 folds data into an accumulated CRC-32 value (Ogg variant).
func UpdateCRC32(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}

// CRC32 computes the Ogg-variant CRC-32 of data in one shot.
func CRC32(data []byte) uint32 {
	return UpdateCRC32(0, data)
}

// Incremental is a resettable incremental CRC accumulator, used where a
// caller wants reset/update/get rather than a single compute(bytes) call.
type Incremental struct {
	crc8  uint8
	crc16 uint16
	crc32 uint32
}

// ResetCRC8 zeroes the CRC-8 accumulator.
func (a *Incremental) ResetCRC8() { a.crc8 = 0 }

// UpdateCRC8 folds data into the CRC-8 accumulator.
func (a *Incremental) UpdateCRC8(data []byte) { a.crc8 = UpdateCRC8(a.crc8, data) }

// GetCRC8 returns the current CRC-8 accumulator value.
func (a *Incremental) GetCRC8() uint8 { return a.crc8 }

// ResetCRC16 zeroes the CRC-16 accumulator.
func (a *Incremental) ResetCRC16() { a.crc16 = 0 }

// UpdateCRC16 folds data into the CRC-16 accumulator.
func (a *Incremental) UpdateCRC16(data []byte) { a.crc16 = UpdateCRC16(a.crc16, data) }

// GetCRC16 returns the current CRC-16 accumulator value.
func (a *Incremental) GetCRC16() uint16 { return a.crc16 }

// ResetCRC32 zeroes the CRC-32 accumulator.
func (a *Incremental) ResetCRC32() { a.crc32 = 0 }

// UpdateCRC32 folds data into the CRC-32 accumulator.
func (a *Incremental) UpdateCRC32(data []byte) { a.crc32 = UpdateCRC32(a.crc32, data) }

// GetCRC32 returns the current CRC-32 accumulator value.
func (a *Incremental) GetCRC32() uint32 { return a.crc32 }
