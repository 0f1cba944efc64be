package frame

import (
	"math"

	"github.com/segin/psymp3-sub003/internal/bitio"
	"github.com/segin/psymp3-sub003/internal/coreerr"
)

// DecodeResidual reads the partitioned-Rice-coded residual for a subframe
// of the given block size and predictor order (spec §4.13), returning
// `block_size - order` residual values.
func DecodeResidual(br *bitio.Reader, blockSize, order int) ([]int32, error) {
	method, err := br.ReadBits(2)
	if err != nil {
		return nil, err
	}

	var paramSize uint
	switch method {
	case 0:
		paramSize = 4
	case 1:
		paramSize = 5
	default:
		return nil, coreerr.New(coreerr.InvalidResidual, "flac: reserved residual coding method")
	}

	partOrderBits, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	partOrder := int(partOrderBits)
	numParts := 1 << partOrder

	if blockSize%numParts != 0 {
		return nil, coreerr.New(coreerr.InvalidResidual, "flac: partition count does not divide block size")
	}
	partSize := blockSize / numParts
	if partSize <= order && partOrder != 0 {
		return nil, coreerr.New(coreerr.InvalidResidual, "flac: partition 0 too small for predictor order")
	}

	escapeValue := uint32(1)<<paramSize - 1
	residuals := make([]int32, 0, blockSize-order)
	total := 0

	for p := 0; p < numParts; p++ {
		param, err := br.ReadBits(paramSize)
		if err != nil {
			return nil, err
		}

		n := partSize
		if p == 0 {
			n = partSize - order
		}

		if param == escapeValue {
			rawBits, err := br.ReadBits(5)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				var v int32
				if rawBits == 0 {
					v = 0
				} else {
					v, err = br.ReadBitsSigned(uint(rawBits))
					if err != nil {
						return nil, err
					}
				}
				residuals = append(residuals, v)
			}
		} else {
			for i := 0; i < n; i++ {
				v, err := br.ReadRice(uint(param))
				if err != nil {
					return nil, err
				}
				if v == math.MinInt32 {
					return nil, coreerr.New(coreerr.InvalidResidual, "flac: residual equals INT32_MIN")
				}
				residuals = append(residuals, v)
			}
		}
		total += n
	}

	if total != blockSize-order {
		return nil, coreerr.New(coreerr.InvalidResidual, "flac: residual sample count mismatch")
	}

	return residuals, nil
}
