package frame

import (
	"github.com/segin/psymp3-sub003/internal/bitio"
	"github.com/segin/psymp3-sub003/internal/coreerr"
)

// SubframeKind identifies a subframe's prediction method (spec §4.12).
type SubframeKind uint8

const (
	KindConstant SubframeKind = iota
	KindVerbatim
	KindFixed
	KindLPC
)

// Subframe holds one channel's decoded, pre-decorrelation samples.
type Subframe struct {
	Kind    SubframeKind
	Order   int // fixed/LPC predictor order
	Wasted  uint
	Samples []int32
}

var fixedCoeffs = [5][]int32{
	0: {},
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	4: {4, -6, 4, -1},
}

// DecodeSubframe reads one subframe's header and samples. bps is the
// effective bit depth for this channel, already including the side
// channel's extra bit where applicable (spec §4.12).
func DecodeSubframe(br *bitio.Reader, blockSize int, bps uint) (Subframe, error) {
	var sf Subframe

	zero, err := br.ReadBits(1)
	if err != nil {
		return Subframe{}, err
	}
	if zero != 0 {
		return Subframe{}, coreerr.New(coreerr.InvalidSubframe, "flac: non-zero subframe padding bit")
	}

	typeBits, err := br.ReadBits(6)
	if err != nil {
		return Subframe{}, err
	}

	switch {
	case typeBits == 0:
		sf.Kind = KindConstant
	case typeBits == 1:
		sf.Kind = KindVerbatim
	case typeBits < 8:
		return Subframe{}, coreerr.New(coreerr.InvalidSubframe, "flac: reserved subframe type")
	case typeBits < 16:
		order := int(typeBits & 0x07)
		if order > 4 {
			return Subframe{}, coreerr.New(coreerr.InvalidSubframe, "flac: reserved fixed predictor order")
		}
		sf.Kind = KindFixed
		sf.Order = order
	case typeBits < 32:
		return Subframe{}, coreerr.New(coreerr.InvalidSubframe, "flac: reserved subframe type")
	default:
		sf.Kind = KindLPC
		sf.Order = int(typeBits&0x1F) + 1
	}

	wastedFlag, err := br.ReadBits(1)
	if err != nil {
		return Subframe{}, err
	}
	if wastedFlag != 0 {
		unary, err := br.ReadUnary()
		if err != nil {
			return Subframe{}, err
		}
		sf.Wasted = uint(unary) + 1
	}

	effectiveBps := bps - sf.Wasted

	switch sf.Kind {
	case KindConstant:
		err = decodeConstant(br, &sf, blockSize, effectiveBps)
	case KindVerbatim:
		err = decodeVerbatim(br, &sf, blockSize, effectiveBps)
	case KindFixed:
		err = decodeFixed(br, &sf, blockSize, effectiveBps)
	case KindLPC:
		err = decodeLPCSubframe(br, &sf, blockSize, effectiveBps)
	}
	if err != nil {
		return Subframe{}, err
	}

	if sf.Wasted > 0 {
		for i := range sf.Samples {
			sf.Samples[i] <<= sf.Wasted
		}
	}

	return sf, nil
}

func readWideSigned(br *bitio.Reader, bps uint) (int32, error) {
	if bps <= 32 {
		return br.ReadBitsSigned(bps)
	}
	v, err := br.ReadBitsSignedWide(bps)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func decodeConstant(br *bitio.Reader, sf *Subframe, blockSize int, bps uint) error {
	sample, err := readWideSigned(br, bps)
	if err != nil {
		return err
	}
	sf.Samples = make([]int32, blockSize)
	for i := range sf.Samples {
		sf.Samples[i] = sample
	}
	return nil
}

func decodeVerbatim(br *bitio.Reader, sf *Subframe, blockSize int, bps uint) error {
	sf.Samples = make([]int32, blockSize)
	for i := 0; i < blockSize; i++ {
		s, err := readWideSigned(br, bps)
		if err != nil {
			return err
		}
		sf.Samples[i] = s
	}
	return nil
}

func decodeFixed(br *bitio.Reader, sf *Subframe, blockSize int, bps uint) error {
	sf.Samples = make([]int32, 0, blockSize)
	for i := 0; i < sf.Order; i++ {
		s, err := readWideSigned(br, bps)
		if err != nil {
			return err
		}
		sf.Samples = append(sf.Samples, s)
	}
	residuals, err := DecodeResidual(br, blockSize, sf.Order)
	if err != nil {
		return err
	}
	sf.Samples = append(sf.Samples, residuals...)
	applyLPC(sf.Samples, fixedCoeffs[sf.Order], 0, sf.Order)
	return nil
}

func decodeLPCSubframe(br *bitio.Reader, sf *Subframe, blockSize int, bps uint) error {
	sf.Samples = make([]int32, 0, blockSize)
	for i := 0; i < sf.Order; i++ {
		s, err := readWideSigned(br, bps)
		if err != nil {
			return err
		}
		sf.Samples = append(sf.Samples, s)
	}

	precBits, err := br.ReadBits(4)
	if err != nil {
		return err
	}
	if precBits == 0xF {
		return coreerr.New(coreerr.InvalidSubframe, "flac: forbidden LPC coefficient precision 1111")
	}
	precision := uint(precBits) + 1

	shiftBits, err := br.ReadBitsSigned(5)
	if err != nil {
		return err
	}
	shift := shiftBits

	coeffs := make([]int32, sf.Order)
	for i := range coeffs {
		c, err := br.ReadBitsSigned(precision)
		if err != nil {
			return err
		}
		coeffs[i] = c
	}

	residuals, err := DecodeResidual(br, blockSize, sf.Order)
	if err != nil {
		return err
	}
	sf.Samples = append(sf.Samples, residuals...)
	applyLPC(sf.Samples, coeffs, shift, sf.Order)
	return nil
}

// applyLPC reconstructs samples[order:] in place given warm-up samples
// already in samples[:order] and residuals in samples[order:] (spec
// §4.12). Arithmetic runs in 64-bit to avoid overflow for deep bit depths
// and long predictor orders.
func applyLPC(samples []int32, coeffs []int32, shift int32, order int) {
	for i := order; i < len(samples); i++ {
		var pred int64
		for j, c := range coeffs {
			pred += int64(c) * int64(samples[i-j-1])
		}
		samples[i] += int32(pred >> uint(shift))
	}
}
