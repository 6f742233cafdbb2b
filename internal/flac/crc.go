package flac

// CRC-8 (polynomial x^8 + x^2 + x + 1) protects frame headers, CRC-16
// (polynomial x^16 + x^15 + x^2 + 1) protects whole frames. Both are
// MSB-first with a zero initial value.
var (
	crc8Table  = makeCRC8Table(0x07)
	crc16Table = makeCRC16Table(0x8005)
)

func makeCRC8Table(poly uint8) [256]uint8 {
	var table [256]uint8
	for i := range table {
		crc := uint8(i)
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func makeCRC16Table(poly uint16) [256]uint16 {
	var table [256]uint16
	for i := range table {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func crc8Update(crc uint8, b byte) uint8 {
	return crc8Table[crc^b]
}

func crc16Update(crc uint16, b byte) uint16 {
	return crc<<8 ^ crc16Table[byte(crc>>8)^b]
}
