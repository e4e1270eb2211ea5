package intc

// Register field codecs. Each packed register has a logical form and a pure
// Encode/Decode pair so the bit layout can be tested apart from the
// acknowledge logic.

// EPIC vector/priority register bits (IVPR, IIVPR, GTVPR).
const (
	VPR_M             uint32 = 1 << 31 // mask
	VPR_A             uint32 = 1 << 30 // activity, read-only
	VPR_P             uint32 = 1 << 23 // polarity
	VPR_S             uint32 = 1 << 22 // sense, 1 = level
	VPR_PRIORITY_MASK uint32 = 0xF << VPR_PRIORITY_SHIFT
	VPR_VECTOR_MASK   uint32 = 0xFF

	VPR_PRIORITY_SHIFT = 16
)

// VPR is the logical view of an EPIC vector/priority register.
type VPR struct {
	Mask     bool
	Active   bool
	Polarity bool
	Sense    bool
	Priority uint8 // 0..15
	Vector   uint8
}

func DecodeVPR(v uint32) VPR {
	return VPR{
		Mask:     v&VPR_M != 0,
		Active:   v&VPR_A != 0,
		Polarity: v&VPR_P != 0,
		Sense:    v&VPR_S != 0,
		Priority: uint8((v & VPR_PRIORITY_MASK) >> VPR_PRIORITY_SHIFT),
		Vector:   uint8(v & VPR_VECTOR_MASK),
	}
}

func (f VPR) Encode() uint32 {
	v := uint32(f.Priority&0xF)<<VPR_PRIORITY_SHIFT | uint32(f.Vector)
	if f.Mask {
		v |= VPR_M
	}
	if f.Active {
		v |= VPR_A
	}
	if f.Polarity {
		v |= VPR_P
	}
	if f.Sense {
		v |= VPR_S
	}
	return v
}

// EPIC global timer count registers.
const (
	GTCCR_T       uint32 = 1 << 31 // toggles on every reload
	GTBCR_CI      uint32 = 1 << 31 // count inhibit
	GT_COUNT_MASK uint32 = 0x7FFFFFFF
)

// DecodeGTBCR splits a base count register into inhibit flag and base count.
func DecodeGTBCR(v uint32) (inhibit bool, base uint32) {
	return v&GTBCR_CI != 0, v & GT_COUNT_MASK
}

func EncodeGTCCR(toggle bool, count uint32) uint32 {
	v := count & GT_COUNT_MASK
	if toggle {
		v |= GTCCR_T
	}
	return v
}

// DecodePSR unpacks one INTC priority select word. Source 4n+i lives in
// byte i counted from the most significant end, priority in its low nibble.
func DecodePSR(word uint32) [4]uint8 {
	var p [4]uint8
	for i := range p {
		p[i] = uint8(word>>(8*(3-i))) & 0xF
	}
	return p
}

func EncodePSR(p [4]uint8) uint32 {
	var word uint32
	for i, v := range p {
		word |= uint32(v&0xF) << (8 * (3 - i))
	}
	return word
}

// INTC IACKR layout. With VTES clear the vector table has 4-byte entries,
// otherwise 8-byte entries, and INTVEC moves up one bit.
const IACKR_INTVEC_MASK uint32 = 0x1FF

func iackrShift(vtes bool) uint {
	if vtes {
		return 3
	}
	return 2
}

// EncodeIACKR builds the acknowledge register value for vector table base
// vtba and source intvec.
func EncodeIACKR(vtba uint32, intvec uint16, vtes bool) uint32 {
	shift := iackrShift(vtes)
	baseMask := ^uint32(0) << (shift + 9)
	return vtba&baseMask | (uint32(intvec)&IACKR_INTVEC_MASK)<<shift
}

func DecodeIACKR(v uint32, vtes bool) (vtba uint32, intvec uint16) {
	shift := iackrShift(vtes)
	baseMask := ^uint32(0) << (shift + 9)
	return v & baseMask, uint16((v >> shift) & IACKR_INTVEC_MASK)
}

// INTC SSCIR bytes.
const (
	SSCIR_SET byte = 0x02 // write-only
	SSCIR_CLR byte = 0x01 // flag; write 1 to clear
)

// DecodeSSCIRWrite splits a word written to SSCIR0_3 or SSCIR4_7 into per
// source set and clear requests, most significant byte first.
func DecodeSSCIRWrite(word uint32) (set, clr [4]bool) {
	for i := 0; i < 4; i++ {
		b := byte(word >> (8 * (3 - i)))
		set[i] = b&SSCIR_SET != 0
		clr[i] = b&SSCIR_CLR != 0
	}
	return set, clr
}

// EncodeSSCIR reports the flag of four software sources. SET reads as 0.
func EncodeSSCIR(flags [4]bool) uint32 {
	var word uint32
	for i, f := range flags {
		if f {
			word |= uint32(SSCIR_CLR) << (8 * (3 - i))
		}
	}
	return word
}

// VIM CHANCTRL words hold four 7-bit request numbers. Channel 4n+i uses
// byte i counted from the most significant end.
const CHANMAP_MASK uint8 = 0x7F

func DecodeChanCtrl(word uint32) [4]uint8 {
	var m [4]uint8
	for i := range m {
		m[i] = uint8(word>>(8*(3-i))) & CHANMAP_MASK
	}
	return m
}

func EncodeChanCtrl(m [4]uint8) uint32 {
	var word uint32
	for i, v := range m {
		word |= uint32(v&CHANMAP_MASK) << (8 * (3 - i))
	}
	return word
}
