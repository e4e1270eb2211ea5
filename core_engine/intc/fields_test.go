package intc_test

import (
	"testing"

	"github.com/matryer/is"

	"example.com/mcu-vpic/core_engine/intc"
)

func TestVPRLayout(t *testing.T) {
	is := is.New(t)
	v := intc.VPR{Mask: true, Sense: true, Priority: 0xA, Vector: 0x5C}
	is.Equal(v.Encode(), uint32(0x804A005C))
	is.Equal(intc.DecodeVPR(0x40850011), intc.VPR{Active: true, Polarity: true, Priority: 5, Vector: 0x11})
}

func TestGTBCRLayout(t *testing.T) {
	is := is.New(t)
	inhibit, base := intc.DecodeGTBCR(0x80001234)
	is.True(inhibit)
	is.Equal(base, uint32(0x1234))
	_, base = intc.DecodeGTBCR(0xFFFFFFFF)
	is.Equal(base, uint32(0x7FFFFFFF))
}

func TestPSRByteOrder(t *testing.T) {
	is := is.New(t)
	is.Equal(intc.DecodePSR(0x0F0A0500), [4]uint8{15, 10, 5, 0})
	is.Equal(intc.EncodePSR([4]uint8{1, 2, 3, 0x1F}), uint32(0x0102030F))
}

func TestIACKRLayout(t *testing.T) {
	is := is.New(t)
	is.Equal(intc.EncodeIACKR(0xFFFFFFFF, 336, false), uint32(0xFFFFF800|336<<2))
	is.Equal(intc.EncodeIACKR(0xFFFFFFFF, 336, true), uint32(0xFFFFF000|336<<3))
	vtba, vec := intc.DecodeIACKR(0x40000000|77<<3, true)
	is.Equal(vtba, uint32(0x40000000))
	is.Equal(vec, uint16(77))
}

func TestSSCIRLayout(t *testing.T) {
	is := is.New(t)
	set, clr := intc.DecodeSSCIRWrite(0x02010300)
	is.Equal(set, [4]bool{true, false, true, false})
	is.Equal(clr, [4]bool{false, true, true, false})
	is.Equal(intc.EncodeSSCIR([4]bool{false, true, false, true}), uint32(0x00010001))
}

func TestChanCtrlLayout(t *testing.T) {
	is := is.New(t)
	is.Equal(intc.DecodeChanCtrl(0x80FF0102), [4]uint8{0, 0x7F, 1, 2})
	is.Equal(intc.EncodeChanCtrl([4]uint8{4, 5, 6, 7}), uint32(0x04050607))
}
